package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/infra/logging"
	"telegram-virtual-number/internal/infra/metrics"
)

type ctxKey string

const ctxAdminID ctxKey = "admin_id"

func contextWithAdmin(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxAdminID, id)
}

func adminFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxAdminID).(int64)
	return id
}

type errorResponse struct {
	Error string `json:"error"`
}

// authMiddleware requires a valid admin bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		adminID, err := claims.AdminID()
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		ctx := logging.WithUserID(r.Context(), adminID)
		ctx = contextWithAdmin(ctx, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health: redis ping failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDecide(approve bool) http.HandlerFunc {
	command := "http:reject"
	if approve {
		command = "http:approve"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")
		actor := adminFromContext(ctx)

		decide := s.wallet.Reject
		if approve {
			decide = s.wallet.Approve
		}
		req, err := decide(ctx, id, actor)
		if err != nil {
			status := errorStatus(err)
			metrics.IncAdminCommand(command, "failed")
			if status == http.StatusInternalServerError {
				logging.With(ctx, s.log).Error().Err(err).Str("topup_id", id).Msg("top-up decision failed")
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		metrics.IncAdminCommand(command, "ok")
		writeJSON(w, http.StatusOK, req)
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
