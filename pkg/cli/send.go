package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/account-notifier/pkg/events"
	"github.com/telekom/account-notifier/pkg/notify"
)

func newSendCommand(rt *runtimeState) *cobra.Command {
	var email, operation, name string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Render and send one notification without going through the broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := notify.ParseOperation(operation)
			if err != nil {
				return err
			}

			a := newApp(rt)
			defer a.close()
			n, err := a.buildNotifier(cmd.Context())
			if err != nil {
				return err
			}

			ev := events.NewLifecycleEvent(op.Kind(), 0, email, name, nil)
			if err := n.Notify(cmd.Context(), ev); err != nil {
				return fmt.Errorf("failed to send %s notification to %s: %w", op, email, err)
			}
			_, _ = fmt.Fprintf(rt.Writer(), "%s notification sent to %s\n", op, email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Recipient address")
	cmd.Flags().StringVar(&operation, "operation", "", "CREATE or DELETE")
	cmd.Flags().StringVar(&name, "name", "", "Display name (default \""+events.DefaultName+"\")")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("operation")

	return cmd
}
