// Package billing is the read-only facade over the billing platform. Every
// read is served from the cache when fresh and fetched upstream otherwise,
// using the upstream session carried in the subscriber's portal token.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dishnetafrica/isp-portal/internal/cache"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/uisp"
)

// CacheStore is the slice of the cache the facade needs.
type CacheStore interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Service serves cached billing reads.
type Service struct {
	log     *slog.Logger
	backend uisp.Backend
	cache   CacheStore
	ttl     time.Duration
}

// New builds the billing facade.
func New(log *slog.Logger, backend uisp.Backend, cacheStore CacheStore, ttl time.Duration) *Service {
	return &Service{log: log, backend: backend, cache: cacheStore, ttl: ttl}
}

// cached runs fetch through the cache. A cache fault never fails the read;
// the fetch just goes upstream.
func (s *Service) cached(ctx context.Context, key string, fetch func() (json.RawMessage, error)) (json.RawMessage, error) {
	var hit json.RawMessage
	found, err := s.cache.Get(ctx, key, &hit)
	if err != nil {
		s.log.Warn("cache read failed", slog.String("key", key), sl.Err(err))
	}
	if found {
		return hit, nil
	}

	fresh, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, fresh, s.ttl); err != nil {
		s.log.Warn("cache write failed", slog.String("key", key), sl.Err(err))
	}
	return fresh, nil
}

// Profile returns the subscriber's billing profile.
func (s *Service) Profile(ctx context.Context, token, customerID string) (json.RawMessage, error) {
	const op = "billing.Profile"

	raw, err := s.cached(ctx, cache.Key(customerID, "profile"), func() (json.RawMessage, error) {
		return s.backend.Profile(ctx, token, customerID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// Invoices returns the subscriber's recent invoices.
func (s *Service) Invoices(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error) {
	const op = "billing.Invoices"

	key := cache.Key(customerID, fmt.Sprintf("invoices:%d", limit))
	raw, err := s.cached(ctx, key, func() (json.RawMessage, error) {
		return s.backend.Invoices(ctx, token, customerID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// InvoiceDetail returns one invoice. Not cached; detail reads are rare and
// follow an invoice list that already was.
func (s *Service) InvoiceDetail(ctx context.Context, token, invoiceID string) (json.RawMessage, error) {
	const op = "billing.InvoiceDetail"

	raw, err := s.backend.InvoiceDetail(ctx, token, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// Payments returns the subscriber's recent payments.
func (s *Service) Payments(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error) {
	const op = "billing.Payments"

	key := cache.Key(customerID, fmt.Sprintf("payments:%d", limit))
	raw, err := s.cached(ctx, key, func() (json.RawMessage, error) {
		return s.backend.Payments(ctx, token, customerID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// Services returns the subscriber's service plans.
func (s *Service) Services(ctx context.Context, token, customerID string) (json.RawMessage, error) {
	const op = "billing.Services"

	raw, err := s.cached(ctx, cache.Key(customerID, "services"), func() (json.RawMessage, error) {
		return s.backend.Services(ctx, token, customerID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// Usage returns the subscriber's data usage summary.
func (s *Service) Usage(ctx context.Context, token, customerID string) (json.RawMessage, error) {
	const op = "billing.Usage"

	raw, err := s.cached(ctx, cache.Key(customerID, "usage"), func() (json.RawMessage, error) {
		return s.backend.Usage(ctx, token, customerID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}
