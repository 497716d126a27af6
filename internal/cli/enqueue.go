package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
)

// EnqueueCmd 手工投递 resolve_order 任务（补发或重放）
func EnqueueCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <order-number>",
		Short: "Enqueue a resolve_order job for a conversation",
		Long: `Publish a resolve_order job to the durable queue. The worker resolves the
order and replies in the given conversation exactly as if the customer had asked.

Usage:
  lookupctl enqueue FP1234567890 --conversation 123456 --user 987`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(cmd, args, load)
		},
	}

	cmd.Flags().String("conversation", "", "Conversation ID to reply in (required)")
	cmd.Flags().String("user", "", "User ID")
	cmd.Flags().String("platform", "", "Platform hint (lalamove, foodpanda, internal)")
	_ = cmd.MarkFlagRequired("conversation")

	return cmd
}

func runEnqueue(cmd *cobra.Command, args []string, load Loader) error {
	conversation, _ := cmd.Flags().GetString("conversation")
	user, _ := cmd.Flags().GetString("user")
	hint, _ := cmd.Flags().GetString("platform")
	if hint != "" && !platform.Parse(hint).Known() {
		return fmt.Errorf("unknown platform %q", hint)
	}

	rt, cleanup, err := load(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if rt.Publisher == nil {
		return fmt.Errorf("lmstfy host not configured: enqueue needs the durable queue")
	}

	ref := platform.NewOrderReference(args[0], platform.Parse(hint))
	data := common.ResolveOrderData{
		ConversationID: conversation,
		UserID:         user,
		OrderNumber:    ref.RawNumber,
	}
	if ref.PlatformHint.Known() {
		data.PlatformHint = string(ref.PlatformHint)
	}

	requestID := uuid.New().String()
	jobID, err := domains.PublishResolveOrder(rt.Publisher, rt.Queue, requestID, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s job %s (request %s) for order %s in conversation %s\n",
		color.New(color.FgGreen).Sprint("QUEUED"), jobID, requestID, ref.RawNumber, conversation)
	return nil
}
