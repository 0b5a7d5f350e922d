package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kosarica/basket-service/config"
	"github.com/kosarica/basket-service/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the price tables if they do not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSQL(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info().Msg("Schema applied")
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check database connectivity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSQL(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Database reachable")
		return nil
	},
}

var fixtureFile string

var seedCmd = &cobra.Command{
	Use:     "seed",
	Short:   "Load chains, stores, products and prices from a JSON fixture",
	Example: `  basket-service seed --file fixtures/zagreb.json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(fixtureFile)
		if err != nil {
			return fmt.Errorf("failed to open fixture: %w", err)
		}
		defer f.Close()

		fixture, err := database.DecodeFixture(f)
		if err != nil {
			return err
		}

		db, err := openSQL(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.LoadFixture(cmd.Context(), db, fixture); err != nil {
			return err
		}
		logger.Info().
			Int("chains", len(fixture.Chains)).
			Int("stores", len(fixture.Stores)).
			Int("products", len(fixture.Products)).
			Int("prices", len(fixture.Prices)).
			Msg("Fixture loaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&fixtureFile, "file", "", "Path to the fixture JSON file")
	seedCmd.MarkFlagRequired("file")
}

// openSQL opens and pings a lib/pq handle.
func openSQL(cmd *cobra.Command) (*sql.DB, error) {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	return database.OpenSQL(cmd.Context(), dbURL)
}
