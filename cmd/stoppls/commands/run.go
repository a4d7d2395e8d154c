package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runReadOnly bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the email monitor and run until interrupted",
	Long: `Run starts the polling loop: every check interval it fetches
messages that arrived since the last check, evaluates them against the
rules, and executes the matching actions. With --read-only (or
read_only: true in the config) intended actions are logged instead of
executed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(runReadOnly)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.monitor.ReadOnly() {
			fmt.Println(warnStyle.Render(
				"Running in read-only mode: no actions will be executed",
			))
		}

		// Prune records past retention before the loop starts; the
		// store only grows while running.
		a.tracker.ClearOldActions(a.cfg.Reports.RetentionDays)

		ctx, stop := signal.NotifyContext(
			cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
		)
		defer stop()

		if err := a.monitor.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		stop()

		a.monitor.Stop(cmd.Context())
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(
		&runReadOnly, "read-only", false,
		"Log intended actions without executing them",
	)
}
