package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"corp_finance/pkg/core/deal"
	"corp_finance/pkg/core/logger"
	"corp_finance/pkg/core/service"
	"corp_finance/pkg/core/settings"
	"corp_finance/pkg/core/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	dealFile string
	save     bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "clo",
	Short: "CLO cash flow waterfall and scenario loss engine",
	Long: `clo runs a collateralized loan obligation deal through the period
waterfall or the stress scenario loss model.

Deal files are YAML (.yaml/.yml), HJSON (.hjson) or JSON (.json).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()
		level := "warn"
		if verbose {
			level = "debug"
		}
		// stdout carries the report; logs go to stderr
		slog.SetDefault(logger.New(logger.Config{Level: level, Format: "text"}, os.Stderr))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file for --save (default: CLO_* env)")
	rootCmd.PersistentFlags().StringVarP(&dealFile, "deal", "d", "", "deal file")
	rootCmd.PersistentFlags().BoolVar(&save, "save", false, "persist the run to the configured store")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newService opens a store only when --save is given.
func newService(ctx context.Context) (*service.Service, func(), error) {
	if !save {
		return service.New(nil, nil, logger.Get()), func() {}, nil
	}
	cfg, err := settings.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	runs, closeFn, err := store.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.Dir)
	if err != nil {
		return nil, nil, err
	}
	return service.New(runs, nil, logger.Get()), closeFn, nil
}

func loadDeal() (*deal.File, error) {
	if dealFile == "" {
		return nil, fmt.Errorf("--deal is required")
	}
	return deal.LoadFile(dealFile)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
