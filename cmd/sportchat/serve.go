package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	figure "github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fenggwsx/SportChat/internal/account"
	"github.com/fenggwsx/SportChat/internal/api"
	"github.com/fenggwsx/SportChat/internal/config"
	"github.com/fenggwsx/SportChat/internal/conversation"
	"github.com/fenggwsx/SportChat/internal/generation"
	"github.com/fenggwsx/SportChat/internal/httpapi"
	"github.com/fenggwsx/SportChat/internal/maintenance"
	"github.com/fenggwsx/SportChat/internal/server"
	"github.com/fenggwsx/SportChat/internal/storage/gormstore"
	"github.com/fenggwsx/SportChat/internal/validation"
)

type loader func(cmd *cobra.Command) (config.Config, error)

func newServeCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the TCP server and, when configured, the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("listen", "", "TCP listen address")
	cmd.Flags().String("http-addr", "", "HTTP listen address (empty disables the HTTP API)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	store, err := gormstore.NewStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	gen, err := generation.New(ctx, cfg.Generation)
	if err != nil {
		return err
	}
	if closer, ok := gen.(io.Closer); ok {
		defer closer.Close()
	}

	svc := buildService(store, gen, cfg)

	fmt.Println(figure.NewFigure("SportChat", "small", true).String())
	log.Info().
		Str("version", cfg.App.Version).
		Str("database", cfg.Database.Driver).
		Str("generation", cfg.Generation.Provider).
		Str("thread_scope", cfg.Threads.Scope).
		Msg("starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.NewApp(cfg.Server, svc).Run(gctx)
	})
	if cfg.HTTP.ListenAddr != "" {
		g.Go(func() error {
			return httpapi.NewServer(cfg.HTTP.ListenAddr, httpapi.NewRouter(svc, cfg.Server)).Run(gctx)
		})
	}
	g.Go(func() error {
		return maintenance.NewSweeper(svc, cfg.Maintenance).Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "serve")
	}
	log.Info().Msg("stopped")
	return nil
}

func buildService(store *gormstore.Store, gen generation.Generator, cfg config.Config) *api.Service {
	v := validation.New(cfg.App.Sports)
	accounts := account.NewService(store, v)
	conversations := conversation.New(store, accounts, gen, v, conversation.Config{
		MaxMessageLength:  cfg.App.MaxMessageLength,
		GenerationTimeout: cfg.Generation.Timeout,
		ThreadScope:       cfg.Threads.Scope,
	})
	return api.New(accounts, conversations, store, cfg.JWT, cfg.App)
}
