package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "vist",
		Short:         "Vist voice assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("vist", version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer syncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.dbPathOrDefault())
	if err != nil {
		return err
	}
	defer store.Close()

	classifier, err := newGenaiClassifier(ctx, cfg.Classifier)
	if err != nil {
		return err
	}
	chat, err := newGenaiChat(ctx, cfg.Classifier, store)
	if err != nil {
		return err
	}

	notifyCh := newChanNotifier()
	engine := newReminderEngine(store, buildNotifier(cfg, notifyCh), cfg.Reminders)

	dispatcher := newDispatcher(cfg.Dispatch)
	registerHandlers(dispatcher, handlerDeps{
		chat:      chat,
		automator: execAutomator{},
		reminders: engine,
	})

	if cfg.Reminders.enabledOrDefault() {
		engine.CatchMissed()
		engine.Start(ctx)
		defer engine.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.listenAddrOrDefault(),
		Handler:           newServer(cfg, classifier, dispatcher, engine, store, notifyCh).handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logInfo("server listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logInfo("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
