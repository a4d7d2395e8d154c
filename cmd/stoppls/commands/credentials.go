package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/stoppls/internal/credential"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage secrets in the system keyring",
	Long: `Credentials stores the Anthropic API key and mailbox password in
the OS keyring so they never have to live in the config file.

Known keys: ` + credential.KeyAnthropicAPIKey + `, ` + credential.KeyMailboxPassword + `.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store a credential (value read from stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(os.Stderr, "Enter value for %s: ", args[0])

		reader := bufio.NewReader(os.Stdin)
		value, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading value: %w", err)
		}
		value = strings.TrimRight(value, "\r\n")
		if value == "" {
			return fmt.Errorf("empty value")
		}

		if err := credential.Set(args[0], value); err != nil {
			return err
		}

		fmt.Printf("Stored credential %q\n", args[0])
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a credential from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credential.Delete(args[0]); err != nil {
			return err
		}

		fmt.Printf("Deleted credential %q\n", args[0])
		return nil
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
}
