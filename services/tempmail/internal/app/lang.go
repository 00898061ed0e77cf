package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stoik/tempmail/services/tempmail/internal/prefs"
)

var langCmd = &cobra.Command{
	Use:   "lang",
	Short: "Show the preferred UI language",
	Long:  "Shows the stored UI language, detecting it from the locale environment on first use",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, closeStore, err := prefsFromConfig(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		tag, err := prefs.Language(ctx, store, os.Getenv)
		if err != nil {
			return err
		}
		fmt.Println(tag)
		return nil
	},
}

var langSetCmd = &cobra.Command{
	Use:   "set <code>",
	Short: "Store the preferred UI language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, closeStore, err := prefsFromConfig(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		tag, err := prefs.SetLanguage(ctx, store, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Language set to %s\n", tag)
		return nil
	},
}

var langListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available UI languages",
	Run: func(cmd *cobra.Command, args []string) {
		codes := make([]string, len(prefs.Languages))
		for i, tag := range prefs.Languages {
			codes[i] = tag.String()
		}
		fmt.Println(strings.Join(codes, " "))
	},
}

func prefsFromConfig(ctx context.Context) (prefs.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return openPrefs(ctx, cfg)
}

func init() {
	langCmd.AddCommand(langSetCmd, langListCmd)
	rootCmd.AddCommand(langCmd)
}
