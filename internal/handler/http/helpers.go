package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/session"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httputil"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/middleware"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/validator"
)

const maxBodyBytes = 1 << 20

// Sessions resolves the storefront session of a request.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func currentSession(w http.ResponseWriter, r *http.Request, sessions Sessions, logger *slog.Logger) (*session.Session, bool) {
	s, err := sessions.Get(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, logger)
		return nil, false
	}
	return s, true
}

// decodeJSON decodes the request body into v and validates it. An empty body
// decodes as the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(v); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
