package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stoik/tempmail/services/tempmail/internal/db"
	"github.com/stoik/tempmail/services/tempmail/internal/prefs"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup the preferences database",
	Long:  "Creates the preferences table in the database named by database.url",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Initialize database
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()

		// Run migrations
		fmt.Println("Running migrations...")
		store := prefs.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		fmt.Println("✓ Database setup complete.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
