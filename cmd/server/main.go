package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/collabchat/internal/config"
	"github.com/Tyrowin/collabchat/internal/logging"
	"github.com/Tyrowin/collabchat/internal/server"
	"github.com/Tyrowin/collabchat/internal/state"
	"github.com/Tyrowin/collabchat/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "collabchat",
		Short:         "Real-time chat and shared document server over WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("port", "", "listen address, e.g. :4000 (overrides SERVER_PORT)")
	cmd.Flags().String("data-dir", "", "directory holding chat.txt, document.txt and users.json (overrides DATA_DIR)")
	cmd.Flags().String("store", "", "persistence backend: file or badger (overrides STORE_BACKEND)")
	cmd.Flags().String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
		// re-derive from the new data dir unless set explicitly
		if os.Getenv("BADGER_PATH") == "" {
			cfg.BadgerPath = ""
		}
	}
	if flags.Changed("store") {
		cfg.StoreBackend, _ = flags.GetString("store")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	cfg.Sanitize()
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}

	st, err := store.Open(cfg.StoreBackend, cfg.DataDir, cfg.BadgerPath)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing store")
		}
	}()

	manager, err := state.New(st)
	if err != nil {
		return err
	}

	srv := server.New(cfg, manager)
	httpServer := server.CreateServer(cfg.Port, srv.Routes())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("backend", cfg.StoreBackend).Str("data_dir", cfg.DataDir).Msg("Starting collabchat server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv.Hub().Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.StartServer(httpServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		httpErr := server.ShutdownServer(httpServer, shutdownTimeout)
		hubErr := srv.Hub().Shutdown(shutdownTimeout)
		if httpErr != nil {
			return httpErr
		}
		return hubErr
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server stopped cleanly")
	return nil
}
