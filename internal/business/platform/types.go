package platform

import (
	"strings"
	"time"
)

// Platform 配送平台标识
type Platform string

const (
	Lalamove  Platform = "lalamove"
	Foodpanda Platform = "foodpanda"
	Internal  Platform = "internal"
	Unknown   Platform = "unknown"
)

// Parse 解析平台标识，无法识别时返回 Unknown
func Parse(s string) Platform {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case Lalamove, Foodpanda, Internal:
		return p
	default:
		return Unknown
	}
}

// Known 是否为已知平台
func (p Platform) Known() bool {
	return p == Lalamove || p == Foodpanda || p == Internal
}

// IsDeliveryPartner 是否为外部配送平台（可直接查询运单状态）
func (p Platform) IsDeliveryPartner() bool {
	return p == Lalamove || p == Foodpanda
}

// OrderReference 订单引用，构造后不可变
type OrderReference struct {
	RawNumber    string
	PlatformHint Platform
}

// NewOrderReference 构造订单引用，单号统一为大写
func NewOrderReference(raw string, hint Platform) OrderReference {
	if !hint.Known() {
		hint = Unknown
	}
	return OrderReference{
		RawNumber:    strings.ToUpper(strings.TrimSpace(raw)),
		PlatformHint: hint,
	}
}

// Courier 骑手/司机信息
type Courier struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
}

// CanonicalStatus 与平台无关的统一配送状态
type CanonicalStatus struct {
	Platform        Platform   `json:"platform"`
	OrderID         string     `json:"order_id"`
	StatusText      string     `json:"status_text"`
	RawStatusCode   string     `json:"raw_status_code"`
	Courier         Courier    `json:"courier"`
	ETA             *time.Time `json:"eta,omitempty"`
	TrackingURL     string     `json:"tracking_url,omitempty"`
	FromCache       bool       `json:"from_cache"`
	InternalOrderID string     `json:"internal_order_id,omitempty"`
	RestaurantName  string     `json:"restaurant_name,omitempty"`
}

// Delivered 订单是否已送达
func (s *CanonicalStatus) Delivered() bool {
	return s.RawStatusCode == "COMPLETED" || s.RawStatusCode == "delivered"
}

// Clone 返回副本，避免共享缓存中的指针被修改
func (s *CanonicalStatus) Clone() *CanonicalStatus {
	if s == nil {
		return nil
	}
	c := *s
	if s.ETA != nil {
		eta := *s.ETA
		c.ETA = &eta
	}
	return &c
}
