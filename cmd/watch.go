package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/explorer"
	"github.com/TFMV/explorer/internal/fsys"
)

var (
	watchFormat  string
	watchTimeout time.Duration
	watchExpand  []string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Print a directory tree again whenever it changes",
	Long: `Print a directory tree, then print it again every time a visible directory changes.

Examples:
  explorer watch
  explorer watch --expand=src --timeout=10m ~/project
  explorer watch --format=json /srv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return runWatch(cmd.Context(), dir)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFormat, "format", "text", "Output format (text|json)")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Duration to watch before exiting (e.g., 1h, 30m)")
	watchCmd.Flags().StringSliceVar(&watchExpand, "expand", nil, "Directories to expand, relative to the root")
}

func runWatch(ctx context.Context, dir string) error {
	if watchFormat != "text" && watchFormat != "json" {
		return fmt.Errorf("invalid format: %s", watchFormat)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tag, err := locale()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}

	watcher, err := fsys.NewNotifyWatcher(logger.Named("watcher"))
	if err != nil {
		return err
	}
	defer watcher.Close()

	fs := fsys.NewOS()
	svc := explorer.NewService(fs, watcher, explorer.Config{Locale: tag, Logger: logger})
	sub := svc.Subscribe()
	defer sub.Close()

	root, err := svc.AddRoot(ctx, dir, nil)
	if err != nil {
		return err
	}
	expanded, err := namedExpansion(ctx, fs, root, watchExpand)
	if err != nil {
		return err
	}
	if len(expanded) > 1 {
		if _, err := svc.UpdateRoot(ctx, root.ID, expanded); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Watching %s for changes...\n", root.Path)
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit.")

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	defer svc.Notifier().Wait()

	for {
		select {
		case payload, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := printPayload(payload); err != nil {
				return err
			}
		case err := <-done:
			if err != nil {
				logger.Error("notifier stopped", zap.Error(err))
			}
			return err
		}
	}
}

func printPayload(payload explorer.Payload) error {
	if watchFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(payload)
	}
	fmt.Printf("--- %s\n", time.Now().Format(time.TimeOnly))
	for _, diag := range payload.Errors {
		fmt.Printf("! %s: %s\n", diag.Path, diag.Message)
	}
	for _, tree := range payload.Trees {
		if err := printTree(os.Stdout, tree); err != nil {
			return err
		}
	}
	return nil
}
