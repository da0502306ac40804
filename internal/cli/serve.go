package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/cardity-org/cardity-core/internal/engine"
	"github.com/cardity-org/cardity-core/internal/rpc"
	"github.com/cardity-org/cardity-core/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Listen   string

	// OnListen is called with the bound address once the listener is open
	// (for testing with port 0).
	OnListen func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [unit-file...]",
		Short: "Serve ProtocolService over gRPC",
		Long: `Start the runtime engine and serve ProtocolService (Compile, DeriveABI,
Deploy, Invoke) over gRPC with the cramberry codec.

Unit files given as arguments are deployed before the listener opens.
Invocations from all clients are serialized through the engine's single
writer and committed to the SQLite store.

Example:
  cardity serve --db ./cardity.db --listen 127.0.0.1:7420 counter.car`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Listen, "listen", "127.0.0.1:7420", "address to listen on")

	return cmd
}

func runServe(opts *ServeOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := slog.Default()

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	eng, err := engine.New(ctx, st, engine.WithLogger(logger))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, err)
	}
	for _, f := range files {
		doc, err := LoadDocument(f)
		if err != nil {
			return formatter.fail(ExitCommandError, errorCode(err), err)
		}
		u, err := engine.Load(doc)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
		}
		if err := eng.Deploy(ctx, u); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, err)
		}
		fmt.Fprintf(formatter.Writer, "Deployed %s %s\n", u.Name, u.Hash)
	}

	lis, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeListen, err)
	}
	gs := grpc.NewServer()
	rpc.NewServer(eng, logger).Register(gs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	serveDone := make(chan error, 1)
	go func() { serveDone <- gs.Serve(lis) }()

	addr := lis.Addr().String()
	logger.Info("serving", "addr", addr, "db", opts.Database)
	fmt.Fprintf(formatter.Writer, "Listening on %s\n", addr)
	if opts.OnListen != nil {
		opts.OnListen(addr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serveDone:
		cancel()
	}
	gs.GracefulStop()
	runErr := <-engineDone

	if serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
		return WrapExitError(ExitFailure, "server error", serveErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", runErr)
	}
	logger.Info("server stopped gracefully")
	return nil
}
