package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch-service/internal/entity"
)

// Identity headers set by the auth gateway in front of the API.
const (
	HeaderUserID       = "X-User-ID"
	HeaderCompanyID    = "X-Company-ID"
	HeaderTechnicianID = "X-Technician-ID"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestLogger logs one line per request. It must run after
// middleware.RequestID.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sw, r)

			log.Info("http request",
				zap.String("req_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Int("bytes", sw.bytes),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

type principalKey struct{}

// Authenticate reads the caller's identity from the gateway headers and
// rejects the request with 401 when a required one is missing or malformed.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "missing or invalid "+HeaderUserID)
			return
		}
		companyID, err := uuid.Parse(r.Header.Get(HeaderCompanyID))
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "missing or invalid "+HeaderCompanyID)
			return
		}
		p := entity.Principal{UserID: userID, CompanyID: companyID}
		if raw := r.Header.Get(HeaderTechnicianID); raw != "" {
			techID, err := uuid.Parse(raw)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "invalid "+HeaderTechnicianID)
				return
			}
			p.TechnicianID = &techID
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func WithPrincipal(ctx context.Context, p entity.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(ctx context.Context) (entity.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(entity.Principal)
	return p, ok
}
