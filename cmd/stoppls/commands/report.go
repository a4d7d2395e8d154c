package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/stoppls/internal/report"
)

var (
	reportDate   string
	reportFormat string
	reportSend   bool
	reportTo     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate or send a daily action report",
	Long: `Report renders the digest of actions taken on a given day
(yesterday by default). With --send the report is emailed through the
configured mailbox instead of printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		var day time.Time
		if reportDate != "" {
			day, err = time.ParseInLocation("2006-01-02", reportDate, time.Local)
			if err != nil {
				return fmt.Errorf("parsing --date %q: %w", reportDate, err)
			}
		}

		if reportSend {
			recipient := reportTo
			if recipient == "" && len(a.cfg.Monitor.Addresses) > 0 {
				recipient = a.cfg.Monitor.Addresses[0]
			}
			if recipient == "" {
				return fmt.Errorf("no recipient: pass --to or configure monitored addresses")
			}

			ctx := cmd.Context()
			if !a.tracker.SendDailyReport(ctx, a.mailbox, recipient, day) {
				return fmt.Errorf("sending daily report failed; see log for details")
			}
			defer func() {
				if err := a.mailbox.Disconnect(ctx); err != nil {
					a.log.Error("Error disconnecting from email provider", "error", err)
				}
			}()

			fmt.Println("Report sent to " + recipient)
			return nil
		}

		format := report.Format(reportFormat)
		switch format {
		case report.FormatText, report.FormatHTML, report.FormatMarkdown:
		default:
			return fmt.Errorf("unknown format %q", reportFormat)
		}

		fmt.Print(a.tracker.GenerateDailyReport(day, format))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(
		&reportDate, "date", "",
		"Day to report on, as YYYY-MM-DD (default: yesterday)",
	)
	reportCmd.Flags().StringVar(
		&reportFormat, "format", "text",
		"Output format: text, html, markdown",
	)
	reportCmd.Flags().BoolVar(
		&reportSend, "send", false,
		"Email the report instead of printing it",
	)
	reportCmd.Flags().StringVar(
		&reportTo, "to", "",
		"Report recipient (default: first monitored address)",
	)
}
