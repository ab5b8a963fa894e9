// Command incomeml trains and serves the monthly income model.
//
//	incomeml train --data pnad.csv.gz --out model.gob.zst
//	incomeml serve --model model.gob.zst
//	incomeml predict --model model.gob.zst --state SP --age 35 ...
package main

import (
	"os"

	"github.com/YuminosukeSato/incomeml/config"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/spf13/cobra"
)

// app holds the state shared by the subcommands.
type app struct {
	configPath string
	logLevel   string
	pretty     bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "incomeml",
		Short:         "Train and serve a monthly income regressor for PNAD-C survey records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = a.logLevel
			}
			if cmd.Flags().Changed("pretty") {
				cfg.Log.Pretty = a.pretty
			}
			if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Pretty); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "human readable logs")

	root.AddCommand(
		newTrainCmd(a),
		newServeCmd(a),
		newPredictCmd(a),
		newConfigCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.GetLogger().Error("Command failed", err)
		os.Exit(1)
	}
}
