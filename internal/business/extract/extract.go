package extract

import (
	"regexp"
	"strings"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
)

// keywords 订单相关关键词（英文 + 马来文）
var keywords = []string{
	"order", "pesanan", "where", "mana", "status",
	"track", "delivery", "penghantaran", "check",
	"tolong", "cek", "di mana",
}

// idPatterns 按优先级提取订单号
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b([A-Z]{2,3}\d{8,10})\b`),
	regexp.MustCompile(`(?i)order\s*#?\s*([A-Z0-9]+)`),
	regexp.MustCompile(`(?i)pesanan\s*#?\s*([A-Z0-9]+)`),
	regexp.MustCompile(`(?i)tracking\s*#?\s*([A-Z0-9]+)`),
	regexp.MustCompile(`(?i)mana\s+(?:order|pesanan)\s*([A-Z0-9]+)`),
	regexp.MustCompile(`(?i)where.*order\s*([A-Z0-9]+)`),
	regexp.MustCompile(`(?i)track.*\s+([A-Z0-9]+)`),
}

var hasDigit = regexp.MustCompile(`\d`)

// Result 从消息中提取出的订单引用
type Result struct {
	Reference platform.OrderReference
	Message   string
}

// Extract 从用户消息中提取订单号。
// 没有订单关键词或没有订单号的消息返回 false，视为非订单查询而不是错误。
func Extract(message string) (*Result, bool) {
	lower := strings.ToLower(message)

	hasKeyword := false
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return nil, false
	}

	number := ""
	for _, re := range idPatterns {
		m := re.FindStringSubmatch(message)
		// 纯字母的词（如 "order status" 中的 status）不是订单号
		if len(m) > 1 && hasDigit.MatchString(m[1]) {
			number = strings.ToUpper(m[1])
			break
		}
	}
	if number == "" {
		return nil, false
	}

	hint := platform.Detect(number)
	if strings.Contains(lower, "lalamove") {
		hint = platform.Lalamove
	}
	if strings.Contains(lower, "foodpanda") {
		hint = platform.Foodpanda
	}

	return &Result{
		Reference: platform.NewOrderReference(number, hint),
		Message:   message,
	}, true
}
