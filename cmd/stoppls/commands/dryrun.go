package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dryRunCmd = &cobra.Command{
	Use:   "dry-run <message-id>",
	Short: "Evaluate one message against the rules without acting",
	Long: `Dry-run fetches a single message by its Message-ID header,
evaluates it against the rules, and logs the actions that would be
taken. The mailbox is never mutated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		if err := a.mailbox.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to email provider: %w", err)
		}
		defer func() {
			if err := a.mailbox.Disconnect(ctx); err != nil {
				a.log.Error("Error disconnecting from email provider", "error", err)
			}
		}()

		msg, err := a.mailbox.GetMessageByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("fetching message %s: %w", args[0], err)
		}
		if msg == nil {
			return fmt.Errorf("message %s not found", args[0])
		}

		fmt.Println(titleStyle.Render("Evaluating message"))
		fmt.Printf("%s %s\n", labelStyle.Render("Subject:"), msg.Subject)
		fmt.Printf("%s %s\n", labelStyle.Render("From:"), msg.Sender)
		fmt.Println()

		a.monitor.ProcessMessage(ctx, *msg)
		return nil
	},
}
