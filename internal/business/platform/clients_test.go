package platform

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLalamoveClient_FetchStatus(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/orders/LM12345678", r.URL.Path)
		assert.Equal(t, "MY", r.Header.Get("Market"))

		mac := hmac.New(sha256.New, []byte("secret"))
		mac.Write([]byte("1700000000000\r\nGET\r\n/v2/orders/LM12345678\r\n\r\n"))
		want := "hmac key:1700000000000:" + hex.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `{
			"orderId": "LM12345678",
			"status": "PICKED_UP",
			"driverInfo": {"name": "Ali", "phone": "+60123456789", "plateNumber": "WXY 1234"},
			"shareLink": "https://track.example/LM12345678",
			"estimatedCompletedAt": "2024-01-01T10:30:00Z"
		}`)
	}))
	defer srv.Close()

	c := NewLalamoveClient(Options{BaseURL: srv.URL, APIKey: "key", APISecret: "secret"})
	c.now = func() time.Time { return fixed }

	status, err := c.FetchStatus(context.Background(), "LM12345678")
	require.NoError(t, err)
	assert.Equal(t, Lalamove, status.Platform)
	assert.Equal(t, "Your order has been picked up and is on the way", status.StatusText)
	assert.Equal(t, "PICKED_UP", status.RawStatusCode)
	assert.Equal(t, Courier{Name: "Ali", Phone: "+60123456789", VehiclePlate: "WXY 1234"}, status.Courier)
	assert.Equal(t, "https://track.example/LM12345678", status.TrackingURL)
	require.NotNil(t, status.ETA)
	assert.Equal(t, 2024, status.ETA.Year())
	assert.False(t, status.FromCache)
}

func TestLalamoveClient_UnmappedStatusPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"orderId":"LM1","status":"RETURNING"}`)
	}))
	defer srv.Close()

	status, err := NewLalamoveClient(Options{BaseURL: srv.URL, APIKey: "k", APISecret: "s"}).
		FetchStatus(context.Background(), "LM1")
	require.NoError(t, err)
	assert.Equal(t, "RETURNING", status.StatusText)
}

func TestLalamoveClient_MissingCredentials(t *testing.T) {
	_, err := NewLalamoveClient(Options{BaseURL: "http://unused"}).FetchStatus(context.Background(), "LM12345678")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFoodpandaClient_FetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fp-key", r.Header.Get("X-API-Key"))
		switch r.URL.Path {
		case "/v1/orders/FP1234567890/status":
			_, _ = io.WriteString(w, `{
				"order_id": "FP1234567890",
				"status": "near_customer",
				"delivery": {"rider_name": "Siti", "rider_contact": "+60111111111", "vehicle_type": "motorbike"},
				"tracking_url": "https://fp.example/t/1",
				"restaurant_name": "Nasi Kandar"
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewFoodpandaClient(Options{BaseURL: srv.URL, APIKey: "fp-key"})

	status, err := c.FetchStatus(context.Background(), "FP1234567890")
	require.NoError(t, err)
	assert.Equal(t, Foodpanda, status.Platform)
	assert.Equal(t, "Rider is nearby your location", status.StatusText)
	assert.Equal(t, "Siti", status.Courier.Name)
	assert.Equal(t, "Nasi Kandar", status.RestaurantName)
	assert.Nil(t, status.ETA)

	_, err = c.FetchStatus(context.Background(), "FP0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestHTTPDoer_ErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/orders/FP5000000000/status":
			w.WriteHeader(http.StatusBadGateway)
		case "/v1/orders/FP4010000000/status":
			w.WriteHeader(http.StatusUnauthorized)
		case "/v1/orders/FPSLOW/status":
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		default:
			_, _ = io.WriteString(w, `not json`)
		}
	}))
	defer srv.Close()

	c := NewFoodpandaClient(Options{BaseURL: srv.URL, APIKey: "k", Timeout: 30 * time.Millisecond})
	ctx := context.Background()

	for _, id := range []string{"FP5000000000", "FP4010000000", "FPSLOW", "FPGARBAGE"} {
		_, err := c.FetchStatus(ctx, id)
		assert.ErrorIs(t, err, ErrTransient, id)
		assert.NotErrorIs(t, err, ErrNotFound, id)
	}

	_, err := c.FetchStatus(ctx, "FP5000000000")
	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
}

func TestISTClient(t *testing.T) {
	var ticket TicketRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ist-token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/orders/BEP88888888":
			_, _ = io.WriteString(w, `{"order_id":"BEP88888888","delivery_partner":"lalamove","delivery_tracking_id":"LM87654321","status":"in_transit"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/orders/BEP11111111":
			_, _ = io.WriteString(w, `{"order_id":"BEP11111111","status":"pending"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/tickets":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&ticket))
			_, _ = io.WriteString(w, `{"id":"T-42"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewISTClient(Options{BaseURL: srv.URL, APIKey: "ist-token"})
	ctx := context.Background()

	order, err := c.LookupOrder(ctx, "BEP88888888")
	require.NoError(t, err)
	assert.Equal(t, Lalamove, order.Partner())
	assert.Equal(t, "LM87654321", order.DeliveryTrackingID)

	order, err = c.LookupOrder(ctx, "BEP11111111")
	require.NoError(t, err)
	assert.Equal(t, Unknown, order.Partner())
	canonical := order.Canonical()
	assert.Equal(t, Internal, canonical.Platform)
	assert.Equal(t, "Finding a driver for your order", canonical.StatusText)

	_, err = c.LookupOrder(ctx, "BEP00000000")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := c.CreateTicket(ctx, TicketRequest{
		Type:           "order_not_found",
		ConversationID: "conv-1",
		OrderNumber:    "FP0000000000",
		UserID:         "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "T-42", created.ID)
	assert.Equal(t, "medium", ticket.Priority)
	assert.Equal(t, "intercom_bot", ticket.Source)
	assert.Equal(t, "conv-1", ticket.ConversationID)
}

func TestISTClient_Unconfigured(t *testing.T) {
	_, err := NewISTClient(Options{APIKey: "x"}).LookupOrder(context.Background(), "BEP11111111")
	assert.ErrorIs(t, err, ErrConfiguration)
}
