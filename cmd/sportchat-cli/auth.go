package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fenggwsx/SportChat/internal/client"
)

func (c *cli) authCommands() []*cobra.Command {
	register := &cobra.Command{
		Use:   "register <username> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Register(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				c.print(client.RenderResult(res.Result))
				return nil
			})
		},
	}

	login := &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Log in and save the session token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Login(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if res.Success {
					if err := client.SaveToken(c.cfg.TokenFile, res.Token); err != nil {
						return err
					}
					c.print(client.Banner("SportChat"))
				}
				c.print(client.RenderResult(res.Result))
				return nil
			})
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return client.ClearToken(c.cfg.TokenFile)
		},
	}

	return []*cobra.Command{register, login, logout}
}
