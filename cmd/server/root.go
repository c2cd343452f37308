package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ag3dash/server/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

func getRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ag3dash",
		Short: "ag3dash serves a browser dashboard over the Ag3 sample-set metadata",
		Long: `ag3dash is a web dashboard for browsing sample sets of the MalariaGEN
Vector Observatory Anopheles gambiae (Ag3) release.

Pages let a user select sample sets, build filter queries over sample
metadata (country, taxon, year) and view summaries and sampling-location maps.

Environment Variables (a .env file in the working directory is loaded first):
    AG3DASH_SESSION_SECRET     Secret used to sign session cookies
    AG3DASH_DATA_BASE_URL      Base URL of an HTTP release mirror`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/server.yaml", "path to configuration file")

	rootCmd.AddCommand(getServeCmd())
	rootCmd.AddCommand(getQueryCmd())
	rootCmd.AddCommand(getSnapshotCmd())
	return rootCmd
}
