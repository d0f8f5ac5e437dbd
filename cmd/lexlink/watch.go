package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	lexlink "github.com/ameetan/go-lexlink"
	"github.com/ameetan/go-lexlink/store"
)

var (
	watchType     string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-ingest files in a directory as they change",
	Long: `Watch monitors a directory for new or modified .txt and .pdf files,
re-ingests them after changes settle, and rebuilds the indexes. Editors
fire several events per save, so ingestion waits for a quiet period.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dt := store.DocType(watchType)
		if !dt.Valid() {
			return fmt.Errorf("unknown document type %q (want statute, case, or rule)", watchType)
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Add(args[0]); err != nil {
			return fmt.Errorf("watching %s: %w", args[0], err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// The timer stays parked until the first interesting event.
		timer := time.NewTimer(watchDebounce)
		if !timer.Stop() {
			<-timer.C
		}
		pending := make(map[string]bool)

		fmt.Printf("watching %s for %s sources (ctrl-c to stop)\n", args[0], dt)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				switch strings.ToLower(filepath.Ext(ev.Name)) {
				case ".txt", ".pdf":
				default:
					continue
				}
				pending[ev.Name] = true
				timer.Reset(watchDebounce)

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				slog.Warn("watch error", "error", err)

			case <-timer.C:
				if ingestPending(ctx, eng, pending, dt) {
					if _, err := eng.Reindex(ctx); err != nil {
						slog.Error("reindex failed", "error", err)
					}
				}
				clear(pending)

			case <-ctx.Done():
				return nil
			}
		}
	},
}

// ingestPending ingests every settled path and reports whether anything
// new was stored.
func ingestPending(ctx context.Context, eng lexlink.Engine, pending map[string]bool, dt store.DocType) bool {
	changed := false
	for path := range pending {
		rep, err := eng.IngestFile(ctx, path, dt)
		if err != nil {
			slog.Error("ingest failed", "path", path, "error", err)
			continue
		}
		if rep.Inserted > 0 {
			changed = true
		}
		fmt.Printf("%s: %s stored %d/%d segments\n", path, rep.RootID, rep.Inserted, rep.Segments)
	}
	return changed
}

func init() {
	watchCmd.Flags().StringVarP(&watchType, "type", "t", "", "document type: statute, case, or rule")
	_ = watchCmd.MarkFlagRequired("type")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before ingesting")
	rootCmd.AddCommand(watchCmd)
}
