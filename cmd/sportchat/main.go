package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fenggwsx/SportChat/internal/config"
	"github.com/fenggwsx/SportChat/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "sportchat",
		Short:         "Sports chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./sportchat.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (console or json)")

	load := func(cmd *cobra.Command) (config.Config, error) {
		v, err := config.NewViper(configFile)
		if err != nil {
			return config.Config{}, err
		}
		if err := bindFlags(v, cmd); err != nil {
			return config.Config{}, err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return config.Config{}, err
		}
		if err := logging.Init(cfg.Log); err != nil {
			return config.Config{}, err
		}
		return cfg, nil
	}

	root.AddCommand(newServeCommand(load), newMigrateCommand(load), newCleanupCommand(load))
	return root
}

// bindFlags lets explicitly set flags override file and env values.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range map[string]string{
		"log.level":          "log-level",
		"log.format":         "log-format",
		"http.listen_addr":   "http-addr",
		"server.listen_addr": "listen",
	} {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "bind flag %s", name)
		}
	}
	return nil
}
