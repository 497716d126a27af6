package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// FoodpandaClient Foodpanda 订单查询，API Key 鉴权
type FoodpandaClient struct {
	baseURL string
	apiKey  string
	doer    *httpDoer
}

// NewFoodpandaClient 创建 Foodpanda 客户端
func NewFoodpandaClient(opts Options) *FoodpandaClient {
	return &FoodpandaClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		doer:    newHTTPDoer(Foodpanda, opts),
	}
}

type foodpandaOrder struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Delivery *struct {
		RiderName    string `json:"rider_name"`
		RiderContact string `json:"rider_contact"`
		VehicleType  string `json:"vehicle_type"`
	} `json:"delivery"`
	EstimatedDeliveryTime string `json:"estimated_delivery_time"`
	TrackingURL           string `json:"tracking_url"`
	RestaurantName        string `json:"restaurant_name"`
}

func (c *FoodpandaClient) Platform() Platform { return Foodpanda }

// FetchStatus 查询 Foodpanda 订单
func (c *FoodpandaClient) FetchStatus(ctx context.Context, trackingID string) (*CanonicalStatus, error) {
	if c.apiKey == "" {
		return nil, &ConfigurationError{Platform: Foodpanda, Missing: "api_key"}
	}

	var order foodpandaOrder
	err := c.doer.do(ctx, func(ctx context.Context) (*http.Request, error) {
		endpoint := c.baseURL + "/v1/orders/" + url.PathEscape(trackingID) + "/status"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &order)
	if err != nil {
		return nil, err
	}

	status := &CanonicalStatus{
		Platform:       Foodpanda,
		OrderID:        order.OrderID,
		StatusText:     describe(foodpandaStatusText, order.Status),
		RawStatusCode:  order.Status,
		ETA:            parseTime(order.EstimatedDeliveryTime),
		TrackingURL:    order.TrackingURL,
		RestaurantName: order.RestaurantName,
	}
	if status.OrderID == "" {
		status.OrderID = trackingID
	}
	if order.Delivery != nil {
		status.Courier = Courier{
			Name:         order.Delivery.RiderName,
			Phone:        order.Delivery.RiderContact,
			VehiclePlate: order.Delivery.VehicleType,
		}
	}
	return status, nil
}
