package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/wire"
	"github.com/shurlinet/groupwire/pkg/session"
)

func runJoin(args []string) {
	if err := doJoin(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doJoin(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	identityFlag := fs.String("identity", "groupwired.key", "path to the identity file")
	listenFlag := fs.String("listen", "0.0.0.0:7789", "UDP address to listen on")
	addrFlag := fs.String("addr", "", "founder's direct multiaddr, e.g. /ip4/1.2.3.4/udp/7788")
	encPKFlag := fs.String("enc-pk", "", "founder's encryption public key (hex), learned out of band")
	nicknameFlag := fs.String("nickname", "anon", "nickname to present on join")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: join <chat-id-hex> --addr <multiaddr> --enc-pk <hex>")
	}
	if *addrFlag == "" {
		return fmt.Errorf("--addr is required")
	}
	if *encPKFlag == "" {
		return fmt.Errorf("--enc-pk is required")
	}

	// chat_id is the founder's own Ed25519 public key (§3, group.NewFounded),
	// so the founder's sign_pk never needs its own flag.
	chatIDBytes, err := hex.DecodeString(fs.Arg(0))
	if err != nil || len(chatIDBytes) != wire.ChatIDSize {
		return fmt.Errorf("chat-id must be %d hex bytes", wire.ChatIDSize)
	}
	founderEncPKBytes, err := hex.DecodeString(*encPKFlag)
	if err != nil || len(founderEncPKBytes) != wire.PublicKeySize {
		return fmt.Errorf("--enc-pk must be %d hex bytes", wire.PublicKeySize)
	}
	var chatID [wire.ChatIDSize]byte
	copy(chatID[:], chatIDBytes)
	var founderSignPK [wire.PublicKeySize]byte
	copy(founderSignPK[:], chatIDBytes)
	var founderEncPK [wire.PublicKeySize]byte
	copy(founderEncPK[:], founderEncPKBytes)

	founderAddr, err := ma.NewMultiaddr(*addrFlag)
	if err != nil {
		return fmt.Errorf("invalid --addr: %w", err)
	}

	self, err := gwcrypto.LoadOrCreateIdentity(*identityFlag)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	udp, err := listenUDP(*listenFlag)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer udp.Close()

	mgr := session.New(self, session.Options{UDP: udp})
	if _, err := mgr.JoinGroup(founderSignPK, chatID, slogSink{logger: slog.Default()}); err != nil {
		return fmt.Errorf("failed to join group: %w", err)
	}
	if err := mgr.SetNickname(chatID, *nicknameFlag); err != nil {
		return fmt.Errorf("failed to set nickname: %w", err)
	}

	fmt.Fprintln(stdout, "joining group, waiting for handshake to complete...")
	fmt.Fprintf(stdout, "nickname: %s\n", *nicknameFlag)

	if err := mgr.InitiateHandshake(chatID, founderEncPK, founderSignPK, founderAddr, nil, [32]byte{}); err != nil {
		return fmt.Errorf("failed to start handshake: %w", err)
	}

	return runEventLoop(udp, mgr)
}
