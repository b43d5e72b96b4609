package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shurlinet/groupwire/internal/gwcrypto"
)

func runInit(args []string) {
	if err := doInit(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	identityFlag := fs.String("identity", "groupwired.key", "path to write the new identity file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*identityFlag); err == nil {
		return fmt.Errorf("identity already exists: %s", *identityFlag)
	}

	kp, err := gwcrypto.LoadOrCreateIdentity(*identityFlag)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	fmt.Fprintf(stdout, "Identity written to %s\n", *identityFlag)
	fmt.Fprintf(stdout, "sign_pk: %x\n", []byte(kp.SignPub))
	fmt.Fprintf(stdout, "enc_pk:  %x\n", kp.EncPub[:])
	return nil
}
