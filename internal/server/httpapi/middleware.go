package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/common"
	"github.com/dmitrijs2005/invoicer/internal/logging"
	"github.com/dmitrijs2005/invoicer/internal/server/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext returns the tenant set by the auth middleware.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func bearerAuth(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, common.ErrorUnauthorized.Error())
				return
			}

			userID, err := auth.GetUserIDFromToken(token, secretKey)
			if err != nil {
				msg := common.ErrInvalidToken.Error()
				if errors.Is(err, common.ErrTokenExpired) {
					msg = common.ErrTokenExpired.Error()
				}
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

func accessLog(logger logging.Logger, requests metric.Int64Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			requests.Add(r.Context(), 1, metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.response.status_code", strconv.Itoa(status)),
			))
			logger.Info(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"request_id", r.Header.Get(HeaderRequestID),
				"duration", time.Since(start).String(),
			)
		})
	}
}
