package platform

var lalamoveStatusText = map[string]string{
	"ASSIGNING_DRIVER": "Finding a driver for your order",
	"ON_GOING":         "Driver is on the way to pick up your order",
	"PICKED_UP":        "Your order has been picked up and is on the way",
	"COMPLETED":        "Your order has been delivered",
	"CANCELED":         "Order was cancelled",
	"REJECTED":         "Order was rejected",
}

var foodpandaStatusText = map[string]string{
	"confirmed":        "Order confirmed by restaurant",
	"preparing":        "Restaurant is preparing your order",
	"ready_for_pickup": "Order ready for pickup",
	"finding_rider":    "Finding a rider for your order",
	"rider_assigned":   "Rider assigned to your order",
	"picked_up":        "Rider has picked up your order",
	"near_customer":    "Rider is nearby your location",
	"delivered":        "Order delivered successfully",
	"cancelled":        "Order cancelled",
}

var internalStatusText = map[string]string{
	"pending":    "Finding a driver for your order",
	"in_transit": "Your order has been picked up and is on the way",
	"delivered":  "Your order has been delivered",
	"cancelled":  "Order was cancelled",
}

const unknownStatusText = "Status not available yet"

// describe 将平台状态码转换为可读文本；未收录的状态码原样透传
func describe(table map[string]string, code string) string {
	if code == "" {
		return unknownStatusText
	}
	if text, ok := table[code]; ok {
		return text
	}
	return code
}
