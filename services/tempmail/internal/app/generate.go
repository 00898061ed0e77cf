package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a disposable address and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		defer manager.Close()

		username, _ := cmd.Flags().GetString("username")
		if domain, _ := cmd.Flags().GetString("domain"); domain != "" {
			manager.SelectDomain(domain)
		}

		address, err := manager.GenerateAddress(ctx, username)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(address)
		}
		fmt.Println(address.Address)
		return nil
	},
}

func init() {
	generateCmd.Flags().String("username", "", "Requested local part (random when empty)")
	generateCmd.Flags().String("domain", "", "Address domain, for providers that offer a choice")
	generateCmd.Flags().Bool("json", false, "Print the address as JSON")
	rootCmd.AddCommand(generateCmd)
}
