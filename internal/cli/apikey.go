package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP API",
	}

	cmd.AddCommand(
		newAPIKeyCreateCmd(),
		newAPIKeyListCmd(),
		newAPIKeyRemoveCmd(),
	)

	return cmd
}

func newAPIKeyCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API key (shown once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			raw, key, err := a.apiKeys.Create(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{
					"key":    raw,
					"id":     key.ID,
					"name":   key.Name,
					"prefix": key.KeyPrefix,
				})
			}
			fmt.Printf("API key created (#%d, %s).\n", key.ID, key.Name)
			fmt.Printf("Key: %s\n", raw)
			fmt.Println("Store it now; it will not be shown again.")
			return nil
		},
	}
}

func newAPIKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			keys, err := a.apiKeys.List()
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(keys)
			}
			if len(keys) == 0 {
				fmt.Println("No API keys.")
				return nil
			}
			for _, k := range keys {
				lastUsed := "never"
				if k.LastUsedAt != nil {
					lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("#%d  %s  (%s...)  last used: %s\n", k.ID, k.Name, k.KeyPrefix, lastUsed)
			}
			return nil
		},
	}
}

func newAPIKeyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key ID: %s", args[0])
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.apiKeys.Delete(id); err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]string{"deleted": args[0]})
			}
			fmt.Printf("API key #%d removed.\n", id)
			return nil
		},
	}
}
