package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/telekom/account-notifier/pkg/version"
)

const (
	componentAccounts      = "accounts"
	componentNotifications = "notifications"
	componentConsumer      = "consumer"
	componentGateway       = "gateway"
)

var allComponents = []string{componentAccounts, componentNotifications, componentConsumer, componentGateway}

func newServeCommand(rt *runtimeState) *cobra.Command {
	components := slices.Clone(allComponents)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the selected service components until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := parseComponents(components)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.serve(ctx, names)
		},
	}

	cmd.Flags().StringSliceVar(&components, "components", components,
		"Components to run: "+strings.Join(allComponents, ", "))

	return cmd
}

// parseComponents normalizes and de-duplicates names, keeping the canonical
// start order.
func parseComponents(names []string) ([]string, error) {
	selected := map[string]bool{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !slices.Contains(allComponents, n) {
			return nil, fmt.Errorf("unknown component %q, expected one of %s", n, strings.Join(allComponents, ", "))
		}
		selected[n] = true
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no components selected")
	}
	out := make([]string, 0, len(selected))
	for _, c := range allComponents {
		if selected[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (rt *runtimeState) serve(ctx context.Context, names []string) error {
	a := newApp(rt)
	defer a.close()

	runners := make([]runner, 0, len(names))
	for _, name := range names {
		run, err := a.build(ctx, name)
		if err != nil {
			return err
		}
		runners = append(runners, run)
	}

	rt.log.Infow("Starting notifier", "components", names, "version", version.Version)
	g, gctx := errgroup.WithContext(ctx)
	for i, run := range runners {
		name := names[i]
		g.Go(func() error {
			if err := run(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			rt.log.Infow("Component stopped", "component", name)
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		rt.log.Errorw("Notifier stopped with error", "error", err)
	}
	return err
}
