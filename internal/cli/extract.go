package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/extract"
)

// ExtractCmd 调试订单号提取规则，不需要任何外部依赖
func ExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <message>",
		Short: "Show which order reference a customer message yields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			res, ok := extract.Extract(strings.Join(args, " "))
			if !ok {
				fmt.Fprintf(out, "%s not an order query\n", color.New(color.FgYellow).Sprint("NONE"))
				return nil
			}
			fmt.Fprintf(out, "%s %s (platform hint: %s)\n",
				color.New(color.FgGreen).Sprint("ORDER"), res.Reference.RawNumber, res.Reference.PlatformHint)
			return nil
		},
	}
}
