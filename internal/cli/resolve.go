package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/reply"
)

// ResolveCmd 直接解析订单状态，不回复用户、不升级
func ResolveCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <order-number>",
		Short: "Resolve an order reference to its delivery status",
		Long: `Resolve an order reference through the same cache, circuit breakers and
platform clients the worker uses. Nothing is sent to the customer.

Usage:
  lookupctl resolve LM12345678
  lookupctl resolve BEP12345678 --platform internal`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, load)
		},
	}

	cmd.Flags().String("platform", "", "Platform hint (lalamove, foodpanda, internal)")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string, load Loader) error {
	hint, _ := cmd.Flags().GetString("platform")
	if hint != "" && !platform.Parse(hint).Known() {
		return fmt.Errorf("unknown platform %q", hint)
	}

	rt, cleanup, err := load(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ref := platform.NewOrderReference(args[0], platform.Parse(hint))
	out := cmd.OutOrStdout()

	status, err := rt.Resolver.Resolve(cmd.Context(), ref)
	switch {
	case errors.Is(err, platform.ErrNotFound):
		fmt.Fprintf(out, "%s order %s was not found on any platform\n", color.New(color.FgYellow).Sprint("NOT FOUND"), ref.RawNumber)
		return nil
	case err != nil:
		fmt.Fprintf(out, "%s %v\n", color.New(color.FgRed).Sprint("UNAVAILABLE"), err)
		if rt.Breakers != nil {
			printBreakers(cmd, rt.Breakers())
		}
		return fmt.Errorf("resolve %s: %w", ref.RawNumber, err)
	}

	source := "live"
	if status.FromCache {
		source = "cache"
	}
	fmt.Fprintf(out, "%s %s on %s (%s)\n", color.New(color.FgGreen).Sprint("FOUND"), status.OrderID, status.Platform, source)
	fmt.Fprintf(out, "  status: %s [%s]\n", status.StatusText, status.RawStatusCode)
	if status.InternalOrderID != "" {
		fmt.Fprintf(out, "  internal order: %s\n", status.InternalOrderID)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, reply.NewFormatter().Status(status))
	return nil
}

func printBreakers(cmd *cobra.Command, states map[string]string) {
	out := cmd.OutOrStdout()
	for _, p := range []platform.Platform{platform.Lalamove, platform.Foodpanda, platform.Internal} {
		state, ok := states[string(p)]
		if !ok {
			continue
		}
		c := color.New(color.FgGreen)
		if state != "closed" {
			c = color.New(color.FgRed)
		}
		fmt.Fprintf(out, "  breaker %-10s %s\n", p, c.Sprint(state))
	}
}
