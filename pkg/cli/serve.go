package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/protomock/pkg/bridge"
	"github.com/getmockd/protomock/pkg/client"
	"github.com/getmockd/protomock/pkg/codec"
	"github.com/getmockd/protomock/pkg/config"
	"github.com/getmockd/protomock/pkg/envopts"
	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/server"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

type serveFlags struct {
	protoFiles  []string
	importPaths []string
	grpcPort    int
	reflection  bool
	logLevel    string
	logFormat   string
}

func newServeCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the stub server",
		Long: `Start the stub server, load mappings from <root-dir>/mappings and serve
until interrupted.

With --proto, a gRPC bridge is started as well. Each unary call is
forwarded as JSON to POST /<package>.<Service>/<Method> on the stub server.`,
		Example: `  # Serve stubs from ./mappings on port 8080
  protomock serve --port 8080

  # Also bridge gRPC calls for the services in api.proto
  protomock serve --port 8080 --proto api.proto --grpc-port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, unknown, err := resolveServerOptions(os.Environ(), cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), flags, opts.Verbose)
			if len(unknown) > 0 {
				log.Warn("ignoring unrecognized server options", "options", unknown)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := startServe(ctx, opts, flags, log)
			if err != nil {
				return err
			}
			session.printBanner(cmd.OutOrStdout())
			return session.run(ctx)
		},
	}

	// Server options are bound to a throwaway value so --help shows the defaults;
	// resolveServerOptions re-parses them on top of the environment.
	config.DefaultServerOptions().BindFlags(cmd.Flags())

	cmd.Flags().StringSliceVar(&flags.protoFiles, "proto", nil, "Proto files whose services are bridged over gRPC")
	cmd.Flags().StringSliceVarP(&flags.importPaths, "import-path", "I", nil, "Directories searched for proto imports")
	cmd.Flags().IntVar(&flags.grpcPort, "grpc-port", 0, "gRPC bridge port (0 = pick a free port)")
	cmd.Flags().BoolVar(&flags.reflection, "reflection", true, "Enable gRPC server reflection on the bridge")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")

	return cmd
}

// resolveServerOptions layers the server flags the user set on top of the
// WIREMOCK_* environment options.
func resolveServerOptions(environ []string, fs *pflag.FlagSet) (*config.ServerOptions, []string, error) {
	args := envopts.Collect(envopts.ParseEnviron(environ), envopts.DefaultPrefix)
	fs.Visit(func(f *pflag.Flag) {
		if config.IsServerOption(f.Name) {
			args = append(args, "--"+f.Name+"="+f.Value.String())
		}
	})
	return config.ParseArgs(args)
}

func newLogger(w io.Writer, flags serveFlags, verbose bool) *slog.Logger {
	level := logging.ParseLevel(flags.logLevel)
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: logging.ParseFormat(flags.logFormat),
		Output: w,
	})
}

// serveSession is a running stub server plus its optional gRPC bridge.
type serveSession struct {
	srv     *server.Server
	bridge  *bridge.Bridge
	grpcLis net.Listener
	log     *slog.Logger
}

func startServe(ctx context.Context, opts *config.ServerOptions, flags serveFlags, log *slog.Logger) (*serveSession, error) {
	srv := server.New(opts, server.WithLogger(log))
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}
	s := &serveSession{srv: srv, log: log}

	if len(flags.protoFiles) == 0 {
		return s, nil
	}
	if err := s.startBridge(ctx, opts.BindAddress, flags); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return nil, errors.Join(err, srv.Stop(stopCtx))
	}
	return s, nil
}

func (s *serveSession) startBridge(ctx context.Context, host string, flags serveFlags) error {
	schema, err := bridge.LoadSchema(flags.protoFiles, flags.importPaths)
	if err != nil {
		return fmt.Errorf("failed to load proto files: %w", err)
	}

	dispatcher := client.NewForServer(s.srv,
		client.WithLogger(s.log),
		client.WithCodec(codec.New(codec.WithResolver(schema.Types()))),
	)
	s.bridge = bridge.New(schema, dispatcher,
		bridge.WithLogger(s.log),
		bridge.WithReflection(flags.reflection),
	)

	var lc net.ListenConfig
	addr := net.JoinHostPort(host, strconv.Itoa(flags.grpcPort))
	s.grpcLis, err = lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}
	return nil
}

// GRPCAddr returns the bridge address, or "" when no bridge is running.
func (s *serveSession) GRPCAddr() string {
	if s.grpcLis == nil {
		return ""
	}
	return s.grpcLis.Addr().String()
}

func (s *serveSession) printBanner(w io.Writer) {
	if baseURL, err := s.srv.BaseURL(); err == nil {
		fmt.Fprintf(w, "protomock listening on %s\n", baseURL)
	}
	if addr := s.GRPCAddr(); addr != "" {
		fmt.Fprintf(w, "gRPC bridge listening on %s\n", addr)
	}
}

// run serves until ctx is done, then shuts everything down.
func (s *serveSession) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.bridge != nil {
		g.Go(func() error {
			if err := s.bridge.Serve(s.grpcLis); err != nil {
				return fmt.Errorf("grpc bridge: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down")

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if s.bridge != nil {
			s.bridge.Stop(stopCtx)
		}
		return s.srv.Stop(stopCtx)
	})
	return g.Wait()
}
