package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// globalFlags maps persistent flags to configuration keys. A flag only
// overrides the environment or config file when it is set explicitly.
var globalFlags = map[string]string{
	"catalog":   "catalog.source",
	"db":        "store.path",
	"step":      "run.step",
	"epoch":     "run.epoch",
	"log-level": "log.level",
}

type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configFile string

	root := &cobra.Command{
		Use:   "ttvsim",
		Short: "Transit timing variation simulator",
		Long: `ttvsim integrates a star and its planets with an N-body leapfrog, records the
ingress time of each transit of the first planet across the star, and reports
how the period between transits varies.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(configFile)
			if err != nil {
				return err
			}
			for name, key := range globalFlags {
				if cmd.Flags().Changed(name) {
					v.Set(key, cmd.Flags().Lookup(name).Value.String())
				}
			}
			level, err := parseLevel(v.GetString("log.level"))
			if err != nil {
				return err
			}
			a.v = v
			a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (json, yaml or toml)")
	pf.String("catalog", "", "catalog file path or http(s) URL (env TTVSIM_CATALOG_SOURCE)")
	pf.String("db", "", "run history SQLite path, empty for in-memory (env TTVSIM_STORE_PATH)")
	pf.Float64("step", 0, "driver step in seconds (env TTVSIM_RUN_STEP, default 3600)")
	pf.String("epoch", "", "calendar time of t=0, RFC 3339 or Julian Date (env TTVSIM_RUN_EPOCH, default J2000)")
	pf.String("log-level", "", "debug, info, warn or error (env TTVSIM_LOG_LEVEL)")

	root.AddCommand(newRunCmd(a), newServeCmd(a), newSystemsCmd(a))
	return root
}
