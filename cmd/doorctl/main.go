// Command doorctl sends one lock command straight to the lock daemon,
// bypassing the web gateway. The password is read from DOORGATE_PASSWORD
// or, with -password-stdin, from the first line of standard input.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/doorgate/internal/config"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/daemon"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
	"github.com/BrandonDHaskell/doorgate/internal/logging"
)

const passwordEnv = "DOORGATE_PASSWORD"

// Exit codes.
const (
	exitOK      = 0
	exitRefused = 1 // the daemon answered with a failure code
	exitGateway = 2 // no usable answer from the daemon
	exitUsage   = 64
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitUsage
	}

	addr := flag.String("addr", cfg.DaemonAddr, "lock daemon address")
	proto := flag.String("protocol", cfg.Protocol, "wire variant: modern or legacy")
	user := flag.String("user", os.Getenv("USER"), "user name")
	token := flag.String("token", "", "16 hex digit door token")
	command := flag.String("command", protocol.CommandUnlock, "lock or unlock")
	ip := flag.String("ip", "127.0.0.1", "client ip reported to the daemon")
	timeout := flag.Duration("timeout", cfg.IOTimeout, "read/write timeout")
	ping := flag.Bool("ping", false, "only check that the daemon accepts connections")
	passStdin := flag.Bool("password-stdin", false, "read the password from stdin")
	verbose := flag.Bool("v", false, "log the exchange")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("correlation_id", uuid.NewString()))

	variant, ok := protocol.VariantByName(*proto)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown protocol %q\n", *proto)
		return exitUsage
	}

	dc := cfg.DaemonConfig()
	dc.Addr = *addr
	dc.IOTimeout = *timeout
	dc.Variant = variant
	client := daemon.NewClient(dc)

	ctx, cancel := context.WithTimeout(context.Background(), dc.DialTimeout+2*(*timeout))
	defer cancel()

	if *ping {
		if err := client.Ping(ctx); err != nil {
			logger.Debug("ping failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, protocol.KindOf(err))
			return exitGateway
		}
		fmt.Println("ok")
		return exitOK
	}

	norm, err := protocol.NormalizeToken(*token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token must contain exactly 16 hex digits")
		return exitUsage
	}

	password, err := readPassword(*passStdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "password: %v\n", err)
		return exitUsage
	}

	req := protocol.NewLockRequest(*command, *user, password, norm, *ip)
	logger.Debug("sending", zap.Object("request", req), zap.String("addr", client.Addr()))

	start := time.Now()
	resp, err := client.Exchange(ctx, req)
	if err != nil {
		logger.Debug("exchange failed", zap.Error(err), zap.Duration("dur", time.Since(start)))
		fmt.Fprintln(os.Stderr, protocol.KindOf(err))
		return exitGateway
	}
	logger.Debug("answer", zap.Int("code", int(resp.Code)), zap.Duration("dur", time.Since(start)))

	fmt.Printf("%d %s\n", int(resp.Code), resp.Code.String())
	if !resp.OK() {
		return exitRefused
	}
	return exitOK
}

func readPassword(fromStdin bool) (string, error) {
	if !fromStdin {
		pw, ok := os.LookupEnv(passwordEnv)
		if !ok {
			return "", fmt.Errorf("set %s or use -password-stdin", passwordEnv)
		}
		return pw, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
