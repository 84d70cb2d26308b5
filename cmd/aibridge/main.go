package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onkernel/aibridge/cmd/config"
	"github.com/onkernel/aibridge/lib/logger"
	"github.com/onkernel/aibridge/lib/notify"
	"github.com/onkernel/aibridge/lib/page"
	"github.com/onkernel/aibridge/lib/relay"
	"github.com/onkernel/aibridge/lib/router"
	"github.com/onkernel/aibridge/lib/sites"
	"github.com/onkernel/aibridge/lib/status"
	"github.com/onkernel/aibridge/lib/tabs"
)

func main() {
	// context cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "aibridge:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	run := newRunCmd()
	root := &cobra.Command{
		Use:           "aibridge",
		Short:         "Bridge AI chat tabs in Chrome to the desktop app",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          run.RunE,
	}
	root.AddCommand(run)
	root.AddCommand(newSitesCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runBridge(cmd.Context(), cfg)
		},
	}
}

func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the sites the bridge monitors",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := sites.Load(os.Getenv("SITES_FILE"))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HOST\tNAME\tKIND\tSTOP SELECTOR")
			for _, s := range reg.Sites() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Host, s.DisplayName, s.Kind, s.StopSelector)
			}
			return w.Flush()
		},
	}
}

func runBridge(ctx context.Context, cfg *config.Config) error {
	level, _ := logger.ParseLevel(cfg.LogLevel)
	slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slogger.Info("bridge configuration", "config", cfg)

	reg, err := sites.Load(cfg.SitesFile)
	if err != nil {
		return fmt.Errorf("failed to load sites: %w", err)
	}
	store := sites.NewStore(reg)

	browser := page.NewBrowser(cfg.CDPEndpoint, slogger)
	defer browser.Close()

	tabMgr := tabs.NewManager(tabs.Config{
		ScanInterval: cfg.ScanInterval,
		PollInterval: cfg.PollInterval,
		SubmitDelay:  cfg.SubmitDelay,
	}, browser, store, slogger)

	conn := relay.New(relay.Config{
		URL:               cfg.RelayURL,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		WatchdogInterval:  cfg.WatchdogInterval,
		DialTimeout:       cfg.DialTimeout,
	}, slogger)

	var notifier router.Notifier = notify.NewLog(slogger)
	if cfg.Notifications {
		notifier = notify.NewDesktop(slogger)
	}
	rt := router.New(conn, tabMgr, notifier, slogger, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.Run(gctx, rt.HandleFrame) })
	g.Go(func() error { return tabMgr.Run(gctx) })
	g.Go(func() error { return rt.Run(gctx, tabMgr.Outbound()) })
	if cfg.SitesFile != "" {
		g.Go(func() error { return sites.Watch(gctx, cfg.SitesFile, store, slogger) })
	}
	if cfg.StatusAddr != "" {
		srv := &http.Server{
			Addr:    cfg.StatusAddr,
			Handler: status.Handler(conn, tabMgr, func() status.Sites { return store.Current() }, slogger),
		}
		g.Go(func() error {
			slogger.Info("status server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slogger.Info("bridge running", "relay", cfg.RelayURL, "cdp", cfg.CDPEndpoint, "sites", reg.Len())
	err = g.Wait()
	slogger.Info("bridge stopped")
	return err
}
