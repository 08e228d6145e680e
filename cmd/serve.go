package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/explorer"
	"github.com/TFMV/explorer/internal/fsys"
	"github.com/TFMV/explorer/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [dir...]",
	Short: "Serve live directory trees over HTTP",
	Long: `Serve live directory trees over HTTP and push updates over a websocket.

Every directory given on the command line is registered as a root at startup.

Examples:
  explorer serve ~/src ~/notes
  PORT=9000 explorer serve .
  explorer serve --addr=127.0.0.1 --port=8080 --log-level=debug /srv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Interface to listen on")
	serveCmd.Flags().String("port", "8080", "Port to listen on")
	serveCmd.Flags().Int("max-concurrent-roots", explorer.DefaultMaxConcurrentRoots, "Roots materialized in parallel")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("max-concurrent-roots", serveCmd.Flags().Lookup("max-concurrent-roots"))
}

func runServe(ctx context.Context, dirs []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tag, err := locale()
	if err != nil {
		return err
	}

	watcher, err := fsys.NewNotifyWatcher(logger.Named("watcher"))
	if err != nil {
		return err
	}
	defer watcher.Close()

	svc := explorer.NewService(fsys.NewOS(), watcher, explorer.Config{
		Locale:             tag,
		MaxConcurrentRoots: viper.GetInt("max-concurrent-roots"),
		Logger:             logger,
	})
	for _, dir := range dirs {
		root, err := svc.AddRoot(ctx, dir, nil)
		if err != nil {
			return fmt.Errorf("registering root: %w", err)
		}
		logger.Info("registered root", zap.String("path", root.Path), zap.String("id", string(root.ID)))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(viper.GetString("addr"), viper.GetString("port"))
	listener := &terminalService{
		service: &server.HTTPService{
			Addr:    addr,
			Handler: server.New(svc, logger.Named("http"), server.Options{}),
			Logger:  logger.Named("http"),
		},
	}

	sup := suture.New("explorer", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warn("supervisor event", zap.String("event", e.String()))
		},
	})
	sup.Add(svc)
	sup.Add(listener)

	err = sup.Serve(ctx)
	svc.Notifier().Wait()
	if listener.err != nil {
		return listener.err
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info("shut down")
	return nil
}

// terminalService stops the whole supervisor tree when the wrapped service
// fails, keeping the failure for the caller. A listener that cannot bind will
// not succeed on restart.
type terminalService struct {
	service suture.Service
	err     error
}

func (t *terminalService) Serve(ctx context.Context) error {
	if err := t.service.Serve(ctx); err != nil && ctx.Err() == nil {
		t.err = err
		return suture.ErrTerminateSupervisorTree
	}
	return nil
}
