// Package auth runs the portal login flow: subscriber credentials go to the
// billing platform, the local subscriber record is synced, and a portal
// session token comes back with the upstream session embedded.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
	"github.com/dishnetafrica/isp-portal/internal/uisp"
)

// SubscriberStore syncs the local subscriber mirror.
type SubscriberStore interface {
	UpsertSubscriber(ctx context.Context, sub models.Subscriber) (*models.Subscriber, error)
}

// TokenMaker issues portal session tokens.
type TokenMaker interface {
	GenerateToken(subscriberID int64, uispCustomerID, email, uispToken string) (string, error)
}

// AuditLog records subscriber-visible actions.
type AuditLog interface {
	AppendAudit(ctx context.Context, e models.AuditEntry) error
}

// EventPublisher fans portal events out to the broker. Best effort; a nil
// publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Session is a successful login.
type Session struct {
	Token      string
	Subscriber models.Subscriber
	Services   []json.RawMessage
}

// Service runs the login flow.
type Service struct {
	log    *slog.Logger
	auth   uisp.Authenticator
	store  SubscriberStore
	tokens TokenMaker
	audit  AuditLog
	events EventPublisher
}

// New builds the auth service. events may be nil.
func New(log *slog.Logger, authenticator uisp.Authenticator, store SubscriberStore, tokens TokenMaker, audit AuditLog, events EventPublisher) *Service {
	return &Service{log: log, auth: authenticator, store: store, tokens: tokens, audit: audit, events: events}
}

// Login exchanges credentials for a portal session. Bad credentials and an
// expired upstream session both surface as uisp.ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password, remoteIP string) (*Session, error) {
	const op = "auth.Login"

	result, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customerID := strconv.FormatInt(result.Customer.ID, 10)
	subscriber, err := s.store.UpsertSubscriber(ctx, models.Subscriber{
		UISPCustomerID: customerID,
		Email:          result.User.Email,
		Name:           result.Customer.Name(),
		Phone:          result.Customer.Phone,
		IsActive:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.GenerateToken(subscriber.ID, customerID, result.User.Email, result.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.audit.AppendAudit(ctx, models.AuditEntry{
		SubscriberID: subscriber.ID,
		Action:       "login",
		ResourceType: "session",
		IPAddress:    remoteIP,
	}); err != nil {
		s.log.Error("audit append failed", sl.Err(err))
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, "subscriber.login", map[string]any{
			"subscriber_id":    subscriber.ID,
			"uisp_customer_id": customerID,
		}); err != nil {
			s.log.Warn("event publish failed", sl.Err(err))
		}
	}

	s.log.Info("subscriber logged in",
		slog.Int64("subscriber_id", subscriber.ID),
		slog.String("uisp_customer_id", customerID))

	return &Session{Token: token, Subscriber: *subscriber, Services: result.Services}, nil
}
