// Command taskrelay-host is the native messaging bridge: the browser
// launches it and speaks length-prefixed JSON over stdin/stdout, and each
// message is forwarded to a running relay as a command submission. Stdout
// carries protocol frames only; diagnostics go to stderr and the session
// log file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/taskrelay/pkg/logging"
	"github.com/entrhq/taskrelay/pkg/nativemsg"
)

const version = "0.1.0"

func main() {
	relayURL := flag.String("relay", "http://127.0.0.1:8766", "Base URL of the running relay")
	timeout := flag.Duration("timeout", 0, "Per-command forwarding deadline (default: outlasts the relay's 30s)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "taskrelay-host - native messaging bridge to a running relay\n\n")
		fmt.Fprintf(os.Stderr, "Usage: taskrelay-host [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nProtocol:\n")
		fmt.Fprintf(os.Stderr, "  stdin/stdout carry 4-byte little-endian length-prefixed JSON messages.\n")
		fmt.Fprintf(os.Stderr, "  Each incoming message is submitted as a command; the relay's answer is\n")
		fmt.Fprintf(os.Stderr, "  framed back. The bridge exits when the peer closes stdin.\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("taskrelay-host v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	var logger *logging.Logger
	if l, err := logging.NewLogger("native-host"); err == nil {
		logger = l
		defer l.Close()
	}

	codec := nativemsg.NewCodec(os.Stdin, os.Stdout)
	host := nativemsg.NewHost(codec, *relayURL, *timeout, logger)

	if err := host.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("native host error: %v", err)
	}
}
