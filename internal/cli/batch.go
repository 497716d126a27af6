package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
)

// BatchCase 批量解析用例
type BatchCase struct {
	OrderNumber string `json:"order_number"`
	Platform    string `json:"platform,omitempty"`
	Expect      string `json:"expect,omitempty"` // found | not_found，为空只打印结果
}

// BatchCmd 按用例文件批量解析，用于上线前冒烟
func BatchCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <cases.json>",
		Short: "Resolve a JSON list of order references and check expectations",
		Long: `Resolve every case in a JSON file and compare the outcome with "expect".

Case file:
  [{"order_number": "LM12345678", "expect": "found"},
   {"order_number": "FP0000000000", "platform": "foodpanda", "expect": "not_found"}]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0], load)
		},
	}
}

func runBatch(cmd *cobra.Command, path string, load Loader) error {
	cases, err := loadCases(path)
	if err != nil {
		return err
	}

	rt, cleanup, err := load(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	passed, failed := 0, 0
	for i, tc := range cases {
		ref := platform.NewOrderReference(tc.OrderNumber, platform.Parse(tc.Platform))
		start := time.Now()
		status, err := rt.Resolver.Resolve(cmd.Context(), ref)
		elapsed := time.Since(start).Round(time.Millisecond)

		outcome := "found"
		detail := ""
		switch {
		case errors.Is(err, platform.ErrNotFound):
			outcome = "not_found"
		case err != nil:
			outcome = "unavailable"
			detail = err.Error()
		default:
			detail = fmt.Sprintf("%s %s", status.Platform, status.RawStatusCode)
		}

		ok := tc.Expect == "" || tc.Expect == outcome
		mark := color.New(color.FgGreen).Sprint("PASS")
		if ok {
			passed++
		} else {
			failed++
			mark = color.New(color.FgRed).Sprint("FAIL")
		}
		fmt.Fprintf(out, "[%d/%d] %s %s -> %s %s (%v)\n", i+1, len(cases), mark, ref.RawNumber, outcome, detail, elapsed)
	}

	fmt.Fprintf(out, "Total: %d, Passed: %d, Failed: %d\n", len(cases), passed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, len(cases))
	}
	return nil
}

func loadCases(path string) ([]BatchCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	var cases []BatchCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case file: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("case file %s is empty", path)
	}
	return cases, nil
}
