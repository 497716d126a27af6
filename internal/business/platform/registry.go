package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RegistryOrder 内部订单系统中的订单记录
type RegistryOrder struct {
	OrderID            string `json:"order_id"`
	DeliveryPartner    string `json:"delivery_partner"`
	DeliveryTrackingID string `json:"delivery_tracking_id"`
	Status             string `json:"status"`
}

// Partner 关联的外部配送平台，未关联返回 Unknown
func (o *RegistryOrder) Partner() Platform {
	p := Parse(o.DeliveryPartner)
	if !p.IsDeliveryPartner() || o.DeliveryTrackingID == "" {
		return Unknown
	}
	return p
}

// Canonical 未关联配送平台时，以内部订单状态作为结果
func (o *RegistryOrder) Canonical() *CanonicalStatus {
	return &CanonicalStatus{
		Platform:        Internal,
		OrderID:         o.OrderID,
		StatusText:      describe(internalStatusText, o.Status),
		RawStatusCode:   o.Status,
		InternalOrderID: o.OrderID,
	}
}

// Registry 内部订单登记查询
type Registry interface {
	LookupOrder(ctx context.Context, orderID string) (*RegistryOrder, error)
}

// TicketRequest 工单请求
type TicketRequest struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	OrderNumber    string `json:"order_number"`
	UserID         string `json:"user_id"`
	Priority       string `json:"priority"`
	Source         string `json:"source"`
}

// Ticket 已创建的工单
type Ticket struct {
	ID string `json:"id"`
}

// TicketCreator 工单系统
type TicketCreator interface {
	CreateTicket(ctx context.Context, req TicketRequest) (*Ticket, error)
}

// ISTClient 内部订单系统（IST）客户端，Bearer Token 鉴权
type ISTClient struct {
	baseURL string
	token   string
	doer    *httpDoer
}

// NewISTClient 创建 IST 客户端
func NewISTClient(opts Options) *ISTClient {
	return &ISTClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.APIKey,
		doer:    newHTTPDoer(Internal, opts),
	}
}

func (c *ISTClient) configured() error {
	if c.baseURL == "" {
		return &ConfigurationError{Platform: Internal, Missing: "base_url"}
	}
	if c.token == "" {
		return &ConfigurationError{Platform: Internal, Missing: "api_key"}
	}
	return nil
}

// LookupOrder 查询内部订单
func (c *ISTClient) LookupOrder(ctx context.Context, orderID string) (*RegistryOrder, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	var order RegistryOrder
	err := c.doer.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders/"+url.PathEscape(orderID), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &order)
	if err != nil {
		return nil, err
	}
	if order.OrderID == "" {
		order.OrderID = orderID
	}
	return &order, nil
}

// CreateTicket 创建工单，priority 与 source 未指定时使用默认值
func (c *ISTClient) CreateTicket(ctx context.Context, t TicketRequest) (*Ticket, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if t.Source == "" {
		t.Source = "intercom_bot"
	}
	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket: %w", err)
	}

	var ticket Ticket
	err = c.doer.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tickets", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &ticket)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}
