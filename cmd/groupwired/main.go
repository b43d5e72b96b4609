package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD)" -o groupwired ./cmd/groupwired
var (
	version = "dev"
	commit  = "unknown"
)

// osExit is a package variable so tests can intercept process exit the way
// cmd/shurli's run_test.go does.
var osExit = os.Exit

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		printUsage()
		osExit(1)
		return
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "whoami":
		runWhoami(os.Args[2:])
	case "create":
		runCreate(os.Args[2:])
	case "join":
		runJoin(os.Args[2:])
	case "version", "--version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		osExit(1)
	}
}

func printVersion() {
	fmt.Printf("groupwired %s (%s)\n", version, commit)
	fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Println("Usage: groupwired <command> [options]")
	fmt.Println()
	fmt.Println("  init                                    Generate a long-term identity")
	fmt.Println("  whoami                                  Show this identity's keys")
	fmt.Println("  create --name <group> [--listen addr] [--private]")
	fmt.Println("                                           Found a new group and run the tick loop")
	fmt.Println("  join <chat-id-hex> --addr <multiaddr> --enc-pk <hex> [--listen addr]")
	fmt.Println("                                           Join an existing group and run the tick loop")
	fmt.Println("  version                                 Show version information")
	fmt.Println()
	fmt.Println("init, whoami, create and join accept --identity <path> (default: ./groupwired.key).")
}
