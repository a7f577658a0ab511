package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// downstreamError accepts both error shapes used by storefront collaborators:
// {"error":{"code":"...","message":"..."}} and {"success":false,"error":"..."}.
type downstreamError struct {
	Code    string
	Message string
}

func decodeDownstreamError(body []byte) (*downstreamError, bool) {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return nil, false
	}

	var structured struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &structured) == nil && structured.Message != "" {
		return &downstreamError{Code: structured.Code, Message: structured.Message}, true
	}

	var plain string
	if json.Unmarshal(envelope.Error, &plain) == nil && plain != "" {
		return &downstreamError{Message: plain}, true
	}
	if envelope.Message != "" {
		return &downstreamError{Message: envelope.Message}, true
	}
	return nil, false
}

// ParseResponseError reads the body of a non-2xx response and translates it
// into an AppError when the body carries a recognizable error. The response
// body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	if de, ok := decodeDownstreamError(bodyBytes); ok {
		return mapDownstreamError(resp.StatusCode, de.Code, de.Message, serviceName)
	}
	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(bodyBytes))
}

func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusPaymentRequired:
		return apperrors.PaymentFailed(qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualifiedMsg)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	default:
		if code == "" {
			code = http.StatusText(status)
		}
		return &apperrors.AppError{Code: code, Message: qualifiedMsg, Status: status}
	}
}

// ReadMessage extracts a human-readable error message from a JSON body,
// returning fallback when the body has none.
func ReadMessage(body []byte, fallback string) string {
	if de, ok := decodeDownstreamError(body); ok {
		return de.Message
	}
	return fallback
}
