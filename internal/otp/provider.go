// Package otp gates guest checkout behind a one-time-password challenge
// delivered by an external SMS/OTP provider.
package otp

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

	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httpclient"
)

const serviceName = "otp-provider"

// Provider sends and checks one-time passwords. Codes are opaque strings.
type Provider interface {
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) error
}

// HTTPProvider calls the OTP endpoints of the storefront auth API.
type HTTPProvider struct {
	baseURL string
	client  httpclient.Doer
	logger  *slog.Logger
}

// NewHTTPProvider creates a provider rooted at baseURL.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy client.
func NewHTTPProvider(baseURL string, client httpclient.Doer, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

type otpRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp,omitempty"`
}

type otpResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RequestOTP asks the provider to send a code to phone.
func (p *HTTPProvider) RequestOTP(ctx context.Context, phone string) error {
	resp, err := p.post(ctx, "/api/auth/send-otp", otpRequest{Phone: phone})
	if err != nil {
		return err
	}
	if !resp.Success {
		return apperrors.InvalidInput(orDefault(resp.Message, "could not send verification code"))
	}

	p.logger.InfoContext(ctx, "otp requested", slog.String("phone", mask(phone)))
	return nil
}

// VerifyOTP checks code for phone. A rejected code is a validation error.
func (p *HTTPProvider) VerifyOTP(ctx context.Context, phone, code string) error {
	resp, err := p.post(ctx, "/api/auth/verify-otp", otpRequest{Phone: phone, OTP: code})
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrUnauthorized) {
			return apperrors.Validation("code", "is invalid or expired")
		}
		return err
	}
	if !resp.Success {
		return apperrors.Validation("code", "is invalid or expired")
	}

	p.logger.InfoContext(ctx, "otp verified", slog.String("phone", mask(phone)))
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload otpRequest) (*otpResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal otp request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create otp request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(ctx, httpReq)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := httpclient.ParseResponseError(resp, serviceName)
		var appErr *apperrors.AppError
		if errors.As(perr, &appErr) {
			return nil, perr
		}
		return nil, apperrors.Transport(serviceName, perr)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, apperrors.Transport(serviceName, fmt.Errorf("read otp response: %w", err))
	}
	var out otpResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Transport(serviceName, fmt.Errorf("decode otp response: %w", err))
	}
	if !out.Success && out.Message == "" {
		out.Message = httpclient.ReadMessage(raw, "")
	}
	return &out, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// mask keeps the last four digits of a phone number for logging.
func mask(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
