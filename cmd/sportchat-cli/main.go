package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenggwsx/SportChat/internal/client"
	"github.com/fenggwsx/SportChat/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cli struct {
	configFile string
	serverAddr string
	cfg        config.ClientConfig
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "sportchat-cli",
		Short:         "Command line client for the SportChat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			v, err := config.NewViper(c.configFile)
			if err != nil {
				return err
			}
			c.cfg = config.LoadClient(v)
			if c.serverAddr != "" {
				c.cfg.ServerAddr = c.serverAddr
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file")
	root.PersistentFlags().StringVar(&c.serverAddr, "server", "", "server address (host:port)")

	root.AddCommand(c.authCommands()...)
	root.AddCommand(c.conversationCommands()...)
	root.AddCommand(c.accountCommands()...)
	return root
}

// run connects, restores the saved token and calls fn.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, s *client.Session) error) error {
	token, err := client.LoadToken(c.cfg.TokenFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s := client.NewSession(c.cfg)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.Close()
	s.SetToken(token)
	return fn(ctx, s)
}

func (c *cli) print(out string) {
	fmt.Println(out)
}
