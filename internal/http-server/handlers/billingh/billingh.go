// Package billingh serves the read-only billing endpoints. The upstream
// session embedded in the subscriber's token is replayed on every call; an
// upstream rejection means the whole portal session is stale.
package billingh

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	"github.com/dishnetafrica/isp-portal/internal/http-server/response"
	libjwt "github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/metrics"
	"github.com/dishnetafrica/isp-portal/internal/uisp"
)

// defaultLimit bounds invoice and payment listings unless the query says
// otherwise.
const defaultLimit = 20

// Facade is the billing read surface.
type Facade interface {
	Profile(ctx context.Context, token, customerID string) (json.RawMessage, error)
	Invoices(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error)
	InvoiceDetail(ctx context.Context, token, invoiceID string) (json.RawMessage, error)
	Payments(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error)
	Services(ctx context.Context, token, customerID string) (json.RawMessage, error)
	Usage(ctx context.Context, token, customerID string) (json.RawMessage, error)
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	metrics.UpstreamErrorsTotal.WithLabelValues("uisp").Inc()

	var upstream *uisp.UpstreamError
	switch {
	case errors.Is(err, uisp.ErrUnauthorized):
		log.Error("upstream session expired", sl.Err(err))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("billing session expired"))
	case errors.As(err, &upstream):
		log.Error("billing system rejected request", sl.Err(err))
		render.Status(r, upstream.Status)
		render.JSON(w, r, response.Error("billing system rejected request"))
	default:
		log.Error("billing read failed", sl.Err(err))
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Error("billing system unavailable"))
	}
}

func limitFrom(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultLimit
}

// read wraps the claims plumbing shared by every billing endpoint.
func read(op string, log *slog.Logger, fetch func(ctx context.Context, claims *libjwt.SessionClaims, r *http.Request) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := mware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid token"))

			return
		}

		raw, err := fetch(r.Context(), claims, r)
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(raw))
	}
}

// Profile handles GET /api/billing/profile.
func Profile(log *slog.Logger, facade Facade) http.HandlerFunc {
	return read("handlers.billingh.Profile", log,
		func(ctx context.Context, claims *libjwt.SessionClaims, _ *http.Request) (json.RawMessage, error) {
			return facade.Profile(ctx, claims.UISPToken, claims.UISPCustomerID)
		})
}

// Invoices handles GET /api/billing/invoices.
func Invoices(log *slog.Logger, facade Facade) http.HandlerFunc {
	return read("handlers.billingh.Invoices", log,
		func(ctx context.Context, claims *libjwt.SessionClaims, r *http.Request) (json.RawMessage, error) {
			return facade.Invoices(ctx, claims.UISPToken, claims.UISPCustomerID, limitFrom(r))
		})
}

// InvoiceDetail handles GET /api/billing/invoices/{id}.
func InvoiceDetail(log *slog.Logger, facade Facade) http.HandlerFunc {
	return read("handlers.billingh.InvoiceDetail", log,
		func(ctx context.Context, claims *libjwt.SessionClaims, r *http.Request) (json.RawMessage, error) {
			return facade.InvoiceDetail(ctx, claims.UISPToken, chi.URLParam(r, "id"))
		})
}

// Payments handles GET /api/billing/payments.
func Payments(log *slog.Logger, facade Facade) http.HandlerFunc {
	return read("handlers.billingh.Payments", log,
		func(ctx context.Context, claims *libjwt.SessionClaims, r *http.Request) (json.RawMessage, error) {
			return facade.Payments(ctx, claims.UISPToken, claims.UISPCustomerID, limitFrom(r))
		})
}

// Services handles GET /api/billing/services.
func Services(log *slog.Logger, facade Facade) http.HandlerFunc {
	return read("handlers.billingh.Services", log,
		func(ctx context.Context, claims *libjwt.SessionClaims, _ *http.Request) (json.RawMessage, error) {
			return facade.Services(ctx, claims.UISPToken, claims.UISPCustomerID)
		})
}

// Usage handles GET /api/billing/usage.
func Usage(log *slog.Logger, facade Facade) http.HandlerFunc {
	return read("handlers.billingh.Usage", log,
		func(ctx context.Context, claims *libjwt.SessionClaims, _ *http.Request) (json.RawMessage, error) {
			return facade.Usage(ctx, claims.UISPToken, claims.UISPCustomerID)
		})
}

// Balance handles GET /api/billing/balance: the balance fields sliced off
// the profile record.
func Balance(log *slog.Logger, facade Facade) http.HandlerFunc {
	return read("handlers.billingh.Balance", log,
		func(ctx context.Context, claims *libjwt.SessionClaims, _ *http.Request) (json.RawMessage, error) {
			raw, err := facade.Profile(ctx, claims.UISPToken, claims.UISPCustomerID)
			if err != nil {
				return nil, err
			}
			var profile struct {
				Balance  float64 `json:"accountBalance"`
				Credit   float64 `json:"accountCredit"`
				Currency string  `json:"currencyCode"`
			}
			if err := json.Unmarshal(raw, &profile); err != nil {
				return nil, err
			}
			return json.Marshal(map[string]any{
				"balance":  profile.Balance,
				"credit":   profile.Credit,
				"currency": profile.Currency,
			})
		})
}
