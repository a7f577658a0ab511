package http

import (
	"log/slog"
	"net/http"

	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httputil"
)

// OTPHandler handles the guest phone verification endpoints.
type OTPHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewOTPHandler creates a new OTP HTTP handler.
func NewOTPHandler(sessions Sessions, logger *slog.Logger) *OTPHandler {
	return &OTPHandler{sessions: sessions, logger: logger}
}

// RequestCodeRequest is the JSON request body for POST /api/v1/otp/request.
type RequestCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=6,max=20"`
}

// VerifyRequest is the JSON request body for POST /api/v1/otp/verify.
type VerifyRequest struct {
	Code string `json:"otp" validate:"required,max=10"`
}

// Get handles GET /api/v1/otp
func (h *OTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, s.OTP.Snapshot())
}

// RequestCode handles POST /api/v1/otp/request
func (h *OTPHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	if err := s.OTP.RequestCode(r.Context(), req.Phone); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, s.OTP.Snapshot())
}

// Verify handles POST /api/v1/otp/verify
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	if err := s.OTP.Verify(r.Context(), req.Code); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, s.OTP.Snapshot())
}

// Cancel handles POST /api/v1/otp/cancel
func (h *OTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	s.OTP.Cancel()
	httputil.WriteData(w, http.StatusOK, s.OTP.Snapshot())
}
