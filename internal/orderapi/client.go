// Package orderapi creates orders on the external Order API.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httpclient"
)

// ServiceName labels Order API failures.
const ServiceName = "order-api"

// Client calls POST {base}/api/orders.
type Client struct {
	baseURL string
	http    httpclient.Doer
	logger  *slog.Logger
}

// NewClient creates a client for the Order API at baseURL.
func NewClient(baseURL string, doer httpclient.Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger,
	}
}

// createOrderResponse accepts the order id at the top level or nested in the
// created order document.
type createOrderResponse struct {
	Success bool       `json:"success"`
	OrderID string     `json:"orderId"`
	Order   *orderBody `json:"order"`
}

type orderBody struct {
	ID string `json:"_id"`
}

// CreateOrder submits req once under idempotencyKey and returns the
// server-assigned order id. Every failure, whether transport or a non-success
// response, is reported as a transport error and no order is assumed created.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (string, error) {
	orderID, err := c.createOrder(ctx, req, idempotencyKey)
	if err != nil {
		c.logger.ErrorContext(ctx, "order creation failed",
			slog.String("idempotency_key", idempotencyKey),
			slog.String("error", err.Error()),
		)
		return "", apperrors.Transport(ServiceName, err)
	}

	c.logger.InfoContext(ctx, "order created",
		slog.String("order_id", orderID),
		slog.String("payment_method", string(req.PaymentMethod)),
		slog.String("total", req.TotalAmount.String()),
	)
	return orderID, nil
}

func (c *Client) createOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal create order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set(httpclient.IdempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("call order api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", httpclient.ParseResponseError(resp, ServiceName)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read order response: %w", err)
	}
	var out createOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if !out.Success {
		return "", errors.New(httpclient.ReadMessage(raw, "order api reported failure"))
	}

	orderID := out.OrderID
	if orderID == "" && out.Order != nil {
		orderID = out.Order.ID
	}
	if orderID == "" {
		return "", errors.New("order api response has no order id")
	}
	return orderID, nil
}
