// Package session serves the session endpoints: login, current identity and
// token refresh.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	"github.com/dishnetafrica/isp-portal/internal/http-server/response"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
	"github.com/dishnetafrica/isp-portal/internal/services/auth"
	"github.com/dishnetafrica/isp-portal/internal/uisp"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionService runs the login flow.
type SessionService interface {
	Login(ctx context.Context, username, password, remoteIP string) (*auth.Session, error)
}

// TokenMaker re-mints session tokens for refresh.
type TokenMaker interface {
	GenerateToken(subscriberID int64, uispCustomerID, email, uispToken string) (string, error)
}

// SubscriberGetter reads the local subscriber mirror.
type SubscriberGetter interface {
	GetSubscriberByUISPID(ctx context.Context, uispCustomerID string) (*models.Subscriber, error)
}

// Login handles POST /api/auth/login.
func Login(log *slog.Logger, sessions SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.session.Login"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req LoginRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))

			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))

			return
		}

		session, err := sessions.Login(r.Context(), req.Username, req.Password, r.RemoteAddr)
		if err != nil {
			if errors.Is(err, uisp.ErrUnauthorized) {
				log.Error("login rejected", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("incorrect username or password"))

				return
			}
			log.Error("login failed", sl.Err(err))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("billing system unavailable"))

			return
		}

		render.JSON(w, r, response.OKWithData(map[string]any{
			"token": session.Token,
			"subscriber": map[string]any{
				"id":               session.Subscriber.ID,
				"uisp_customer_id": session.Subscriber.UISPCustomerID,
				"email":            session.Subscriber.Email,
				"name":             session.Subscriber.Name,
			},
			"services": session.Services,
		}))
	}
}

// Me handles GET /api/auth/me.
func Me(log *slog.Logger, subscribers SubscriberGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.session.Me"

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

		subscriber, err := subscribers.GetSubscriberByUISPID(r.Context(), claims.UISPCustomerID)
		if err != nil {
			log.Error("subscriber lookup failed", sl.Err(err))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscriber not found"))

			return
		}

		render.JSON(w, r, response.OKWithData(map[string]any{
			"id":               subscriber.ID,
			"uisp_customer_id": subscriber.UISPCustomerID,
			"email":            subscriber.Email,
			"name":             subscriber.Name,
			"phone":            subscriber.Phone,
		}))
	}
}

// Refresh handles POST /api/auth/refresh: a fresh token from verified
// claims, upstream session carried over.
func Refresh(log *slog.Logger, tokens TokenMaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.session.Refresh"

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

		token, err := tokens.GenerateToken(claims.SubscriberID, claims.UISPCustomerID, claims.Email, claims.UISPToken)
		if err != nil {
			log.Error("could not generate token", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not generate token"))

			return
		}

		render.JSON(w, r, response.OKWithData(map[string]any{"token": token}))
	}
}
