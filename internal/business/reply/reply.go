package reply

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
)

// malaysiaTime 回复中的时间统一按马来西亚时间展示
var malaysiaTime = time.FixedZone("MYT", 8*60*60)

// statusTips 状态提示语
var statusTips = map[string]string{
	"Finding a driver for your order":                 "💡 Tip: A driver will be assigned shortly!",
	"Your order has been picked up and is on the way": "🎉 Great news! Your order is on the way!",
	"Your order has been delivered":                   "✅ Your order has been delivered. Enjoy your meal! 🍽️",
	"Order was cancelled":                             "❌ This order was cancelled. Please contact support if you need assistance.",
	"Order was rejected":                              "❌ This order was rejected. Please contact support for more information.",
}

// Formatter 生成发送给用户的消息
type Formatter struct {
	now func() time.Time
	loc *time.Location
}

// NewFormatter 创建消息格式化器
func NewFormatter() *Formatter {
	return &Formatter{now: time.Now, loc: malaysiaTime}
}

// Status 订单状态消息
func (f *Formatter) Status(s *platform.CanonicalStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 I found your %s order!\n\n", s.Platform)
	fmt.Fprintf(&b, "**Status**: %s\n", s.StatusText)

	if s.Courier.Name != "" {
		role := "Driver"
		if s.Platform == platform.Foodpanda {
			role = "Rider"
		}
		fmt.Fprintf(&b, "🚗 **%s**: %s\n", role, s.Courier.Name)
		if s.Courier.Phone != "" {
			fmt.Fprintf(&b, "📞 **Contact**: %s\n", s.Courier.Phone)
		}
	}

	if s.ETA != nil {
		minutes := int(math.Round(s.ETA.Sub(f.now()).Minutes()))
		switch {
		case minutes > 0:
			fmt.Fprintf(&b, "⏱️ **Estimated arrival**: %s (in %d minutes)\n", s.ETA.In(f.loc).Format("03:04 PM"), minutes)
		case !s.Delivered():
			b.WriteString("⏱️ **Expected soon** - driver is very close!\n")
		}
	}

	if s.TrackingURL != "" {
		fmt.Fprintf(&b, "\n🔗 [Track your order live](%s)", s.TrackingURL)
	}

	if tip, ok := statusTips[s.StatusText]; ok {
		b.WriteString("\n\n")
		b.WriteString(tip)
	}
	return b.String()
}

// NotFound 订单不存在消息
func (f *Formatter) NotFound(orderNumber string) string {
	return fmt.Sprintf(`I couldn't find order %s in our system. This could mean:

• The order number might be incorrect
• The order is still being processed
• It's from a different platform

I'm creating a support ticket for you, and our team will look into this right away. They'll respond within 2-4 hours.

In the meantime, please double-check your order confirmation email/SMS for the correct order number.`, orderNumber)
}

// Handoff 转人工致歉消息，不包含任何后端错误细节
func (f *Formatter) Handoff() string {
	return "I'm having trouble accessing order information right now. Let me connect you with a human agent who can help you immediately."
}
