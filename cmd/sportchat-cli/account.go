package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fenggwsx/SportChat/internal/client"
)

func (c *cli) accountCommands() []*cobra.Command {
	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.UserInfo(ctx)
				if err != nil {
					return err
				}
				if !res.Success || res.User == nil {
					c.print(client.RenderResult(res.Result))
					return nil
				}
				c.print(fmt.Sprintf("%s (id %d, since %s)", res.User.Username, res.User.ID, res.User.CreatedAt.Local().Format("2006-01-02")))
				return nil
			})
		},
	}

	passwd := &cobra.Command{
		Use:   "passwd <current> <new>",
		Short: "Change your password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.ChangePassword(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				c.print(client.RenderResult(res))
				return nil
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show your conversation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Stats(ctx)
				if err != nil {
					return err
				}
				c.print(client.RenderStats(res))
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Print your account and conversations as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Export(ctx)
				if err != nil {
					return err
				}
				if !res.Success {
					c.print(client.RenderResult(res.Result))
					return nil
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Data)
			})
		},
	}

	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete turns older than --days (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Cleanup(ctx, days)
				if err != nil {
					return err
				}
				if !res.Success {
					c.print(client.RenderResult(res.Result))
					return nil
				}
				c.print(fmt.Sprintf("deleted %d conversations before %s", res.DeletedConversations, res.CutoffDate.Local().Format("2006-01-02 15:04")))
				return nil
			})
		},
	}
	cleanup.Flags().IntVar(&days, "days", 30, "retention in days")

	health := &cobra.Command{
		Use:   "health",
		Short: "Check the server and its database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Health(ctx)
				if err != nil {
					return err
				}
				c.print(client.RenderHealth(res))
				return nil
			})
		},
	}

	appConfig := &cobra.Command{
		Use:   "config",
		Short: "Show the server's application settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.AppConfig(ctx)
				if err != nil {
					return err
				}
				c.print(fmt.Sprintf("version %s\nsports: %s\nmax message length: %d",
					res.Version, strings.Join(res.Sports, ", "), res.MaxMessageLength))
				return nil
			})
		},
	}

	return []*cobra.Command{whoami, passwd, stats, export, cleanup, health, appConfig}
}
