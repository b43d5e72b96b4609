package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shurlinet/groupwire/internal/gwcrypto"
)

func runWhoami(args []string) {
	if err := doWhoami(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doWhoami(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	identityFlag := fs.String("identity", "groupwired.key", "path to the identity file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kp, err := gwcrypto.LoadOrCreateIdentity(*identityFlag)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	fmt.Fprintf(stdout, "sign_pk: %x\n", []byte(kp.SignPub))
	fmt.Fprintf(stdout, "enc_pk:  %x\n", kp.EncPub[:])
	return nil
}
