package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/enrich"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/ingest"
	"github.com/hirevox/hirevox/logger"
	"github.com/hirevox/hirevox/roster"
)

// ServeCmd runs the local ingestion endpoint
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the candidate ingestion endpoint",
	Long: `Start the local HTTP endpoint the browser extension pushes scraped
candidate profiles to. Accepted events are acknowledged on the console
and streamed to websocket subscribers on /ws/receipts.

The endpoint binds 127.0.0.1 only and stops on Ctrl-C.`,
	RunE: runServe,
}

var (
	servePort  int
	serveQuiet bool
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listener port (overrides config)")
	ServeCmd.Flags().BoolVar(&serveQuiet, "quiet", false, "Suppress per-event receipt output")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if servePort != 0 {
		cfg.Ingest.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := roster.NewStore()
	server := ingest.NewServer(store, cfg.Ingest)
	if !serveQuiet {
		server.OnReceipt(printReceipt)
	}

	// Annotate localities as records arrive. Lookup misses store the
	// unknown sentinel; failures only log, ingestion is never blocked.
	lookup := enrich.NewOfflineLookup()
	if cfg.Enrich.TablePath != "" {
		if err := lookup.LoadTable(cfg.Enrich.TablePath); err != nil {
			logger.Warnw("prefix table unavailable, using built-in data only",
				"path", cfg.Enrich.TablePath, "error", err)
		}
	}
	pipeline := enrich.NewPipeline(store, lookup, cfg.Enrich)
	server.OnReceipt(func(r ingest.Receipt) {
		go func() {
			if _, err := pipeline.Enrich(ctx, r.Phone, false); err != nil {
				logger.Warnw("enrichment failed", "phone", r.Phone, "error", err)
			}
		}()
	})

	// Reload validated config changes while serving; only pacing knobs
	// take effect without a restart, the listener port does not.
	if configPath := am.ProjectConfigPath(); configPath != "" {
		watcher, err := am.NewConfigWatcher(configPath)
		if err != nil {
			logger.Warnw("config watcher unavailable", "path", configPath, "error", err)
		} else {
			watcher.OnReload(func(next *am.Config) error {
				server.SetRate(next.Ingest.EventsPerSecond, next.Ingest.EventBurst)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	pterm.DefaultSection.Println("hirevox ingestion endpoint")
	pterm.Info.Printfln("Listening on http://%s", server.Addr())
	pterm.Info.Printfln("Receipt stream on ws://%s/ws/receipts", server.Addr())
	pterm.Println(pterm.Gray("Press Ctrl-C to stop"))

	if err := server.Start(ctx); err != nil {
		return err
	}

	// Sweep up records the per-event path missed (early cancel, races).
	sweepCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sum, err := pipeline.EnrichAll(sweepCtx, "", false); err == nil && sum.Enriched+sum.Unknown > 0 {
		pterm.Info.Printfln("Final enrichment pass: %d resolved, %d unknown",
			sum.Enriched, sum.Unknown)
	}

	sess, active := store.ActiveSession()
	if active {
		pterm.Warning.Printfln("Session %s was still active at shutdown (%d records)",
			sess.ID, sess.Records)
	}
	pterm.Success.Printfln("Stopped. %d candidate records collected.", store.Len())
	return nil
}

func printReceipt(r ingest.Receipt) {
	label := r.Phone
	if r.Name != "" {
		label = fmt.Sprintf("%s (%s)", r.Name, r.Phone)
	}
	if r.Created {
		pterm.Success.Printfln("✓ 收到数据: %s", label)
	} else {
		pterm.Info.Printfln("✓ 收到数据（更新）: %s rev %d", label, r.Revision)
	}
}
