package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sockframe-dev/sockframe/pkg/auth"
	"github.com/sockframe-dev/sockframe/pkg/broker"
	"github.com/sockframe-dev/sockframe/pkg/middleware"
	"github.com/sockframe-dev/sockframe/pkg/server"
	"github.com/sockframe-dev/sockframe/pkg/session"
)

type serveOptions struct {
	addr            string
	wsPath          string
	brokerKind      string
	natsURL         string
	debug           bool
	userGroupPrefix string
	baseGroups      []string
	jwtSecret       string
	staticTokens    []string
	maxSessions     int
	logLevel        string
}

func serveCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the RPC-over-WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", ":8080", "listen address")
	flags.StringVar(&opts.wsPath, "ws-path", "/ws", "websocket upgrade path")
	flags.StringVar(&opts.brokerKind, "broker", "memory", "group broker: memory, gochannel or nats")
	flags.StringVar(&opts.natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server URL (broker=nats)")
	flags.BoolVar(&opts.debug, "debug", false, "expose internal error details to clients")
	flags.StringVar(&opts.userGroupPrefix, "user-group-prefix", "", "override the per-user group prefix")
	flags.StringSliceVar(&opts.baseGroups, "base-groups", nil, "groups every session joins on connect")
	flags.StringVar(&opts.jwtSecret, "jwt-secret", "", "HMAC secret for JWT access tokens")
	flags.StringSliceVar(&opts.staticTokens, "static-token", nil, "static token=userID pairs (development)")
	flags.IntVar(&opts.maxSessions, "max-sessions", 0, "maximum concurrent sessions (0 = unlimited)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	return cmd
}

func runServe(opts *serveOptions) error {
	logger := newLogger(opts.logLevel)
	slog.SetDefault(logger)

	// Environment provides the baseline; flags override.
	cfg := session.ConfigFromEnv()
	if opts.debug {
		cfg.DebugMode = true
	}
	if opts.userGroupPrefix != "" {
		cfg.UserGroupPrefix = opts.userGroupPrefix
	}
	if len(opts.baseGroups) > 0 {
		cfg.BaseGroups = opts.baseGroups
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	groupBroker, err := newBroker(opts, logger)
	if err != nil {
		return err
	}
	defer groupBroker.Close()

	lookup, err := newLookup(opts)
	if err != nil {
		return err
	}
	gate := auth.NewGate(lookup, logger)

	reg := newRegistry()

	dispatchMiddleware := []session.Middleware{
		middleware.Prometheus(),
		middleware.OpenTelemetry(),
	}

	factory := func(conn session.Conn) *session.Session {
		return session.New(session.Options{
			Conn:       conn,
			Registry:   reg,
			Gate:       gate,
			Broker:     groupBroker,
			Config:     cfg,
			Logger:     logger,
			Middleware: dispatchMiddleware,
		})
	}

	srvConfig := server.DefaultConfig()
	srvConfig.Address = opts.addr
	srvConfig.WebSocketPath = opts.wsPath
	srvConfig.MaxSessions = opts.maxSessions
	srvConfig.SessionConfig = cfg
	if err := srvConfig.Validate(); err != nil {
		return err
	}

	srv := server.New(srvConfig, factory, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting sockframed",
		"addr", opts.addr,
		"broker", opts.brokerKind,
		"debug", cfg.DebugMode)

	return srv.Start(ctx)
}

// newBroker selects the group broadcast implementation.
func newBroker(opts *serveOptions, logger *slog.Logger) (broker.Broker, error) {
	switch opts.brokerKind {
	case "memory":
		return broker.NewMemoryBroker(), nil
	case "gochannel":
		return broker.NewGoChannelBroker(logger), nil
	case "nats":
		return broker.NewNATSBroker(opts.natsURL, logger)
	default:
		return nil, fmt.Errorf("unknown broker %q (want memory, gochannel or nats)", opts.brokerKind)
	}
}

// newLookup selects the principal lookup backing the auth gate.
func newLookup(opts *serveOptions) (auth.Lookup, error) {
	if opts.jwtSecret != "" {
		return auth.NewJWTLookup([]byte(opts.jwtSecret)), nil
	}
	if len(opts.staticTokens) > 0 {
		tokens := make(map[string]auth.Principal, len(opts.staticTokens))
		for _, pair := range opts.staticTokens {
			token, userID, ok := strings.Cut(pair, "=")
			if !ok || token == "" || userID == "" {
				return nil, fmt.Errorf("malformed --static-token %q (want token=userID)", pair)
			}
			tokens[token] = auth.Principal{ID: userID}
		}
		return auth.NewStaticLookup(tokens), nil
	}
	return nil, fmt.Errorf("authentication not configured: pass --jwt-secret or --static-token")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
