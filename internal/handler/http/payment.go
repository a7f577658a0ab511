package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httputil"
)

// PaymentHandler receives payment gateway notifications.
type PaymentHandler struct {
	gateway payment.Gateway
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(gateway payment.Gateway, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{gateway: gateway, logger: logger}
}

// Notify handles POST /api/v1/payments/notifications
func (h *PaymentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "unreadable notification body"},
		})
		return
	}

	if err := h.gateway.HandleNotification(r.Context(), body); err != nil {
		h.logger.WarnContext(r.Context(), "payment notification rejected",
			slog.String("gateway", h.gateway.Name()),
			slog.String("error", err.Error()),
		)
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
}
