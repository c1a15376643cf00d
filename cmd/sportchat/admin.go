package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fenggwsx/SportChat/internal/generation"
	"github.com/fenggwsx/SportChat/internal/storage/gormstore"
)

func newMigrateCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			store, err := gormstore.NewStore(cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func newCleanupCommand(load loader) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete conversation turns older than --days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			store, err := gormstore.NewStore(cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			// No reply is generated during cleanup.
			offline := generation.GeneratorFunc(func(context.Context, string) (string, error) {
				return "", errors.New("generation disabled")
			})
			res := buildService(store, offline, cfg).CleanupOldData(cmd.Context(), days)
			if !res.Success {
				return errors.New(res.Error)
			}
			fmt.Printf("deleted %d conversations older than %s\n", res.DeletedConversations, res.CutoffDate.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "retention in days")
	return cmd
}
