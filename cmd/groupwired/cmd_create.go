package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/wire"
	"github.com/shurlinet/groupwire/pkg/session"
)

func runCreate(args []string) {
	if err := doCreate(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doCreate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	identityFlag := fs.String("identity", "groupwired.key", "path to the identity file")
	nameFlag := fs.String("name", "", "group name")
	listenFlag := fs.String("listen", "0.0.0.0:7788", "UDP address to listen on")
	privateFlag := fs.Bool("private", false, "create a private (invite-only) group")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *nameFlag == "" {
		return fmt.Errorf("--name is required")
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

	privacy := wire.PrivacyPublic
	if *privateFlag {
		privacy = wire.PrivacyPrivate
	}
	g, err := mgr.CreateGroup(*nameFlag, 0, privacy, slogSink{logger: slog.Default()})
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	fmt.Fprintf(stdout, "chat_id: %x\n", g.ChatID[:])
	fmt.Fprintf(stdout, "sign_pk: %x\n", []byte(self.SignPub))
	fmt.Fprintf(stdout, "listening on %s\n", *listenFlag)

	return runEventLoop(udp, mgr)
}

// runEventLoop drives packet dispatch and the tick loop on one goroutine,
// since session.Manager's state is not internally synchronized (§5: one
// cooperative single-threaded scheduler is the whole concurrency model).
// The socket read itself runs on udpTransport's own goroutine, handing
// packets across through a channel rather than calling into the Manager
// directly.
func runEventLoop(udp *udpTransport, mgr *session.Manager) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go udp.readLoop(ctx)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case pkt, ok := <-udp.in:
			if !ok {
				return nil
			}
			mgr.OnUDPPacket(pkt.src, pkt.raw)
		case now := <-ticker.C:
			mgr.Tick(ctx, now)
		}
	}
}
