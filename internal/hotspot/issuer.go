package hotspot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/lib/random"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

// RouterClient is the slice of router operations voucher issuing needs.
type RouterClient interface {
	HotspotProfiles(ctx context.Context, creds mikrotik.Credentials) ([]map[string]string, error)
	CreateHotspotProfile(ctx context.Context, creds mikrotik.Credentials, profile mikrotik.HotspotProfile) (string, error)
	CreateHotspotUser(ctx context.Context, creds mikrotik.Credentials, user mikrotik.HotspotUser) (string, error)
	HotspotUsers(ctx context.Context, creds mikrotik.Credentials) ([]map[string]string, error)
	ActiveSessions(ctx context.Context, creds mikrotik.Credentials) ([]map[string]string, error)
}

// VoucherStore persists issued batches.
type VoucherStore interface {
	SaveVoucherBatch(ctx context.Context, vouchers []models.Voucher) error
	ListVouchersByBatch(ctx context.Context, batchID string) ([]models.Voucher, error)
}

// FailedCode is one code the router rejected.
type FailedCode struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BatchResult reports a voucher batch with per-code outcomes. A batch where
// some codes landed and some did not is still a success; the caller sees
// both lists.
type BatchResult struct {
	BatchID string           `json:"batch_id"`
	Preset  Preset           `json:"preset"`
	Issued  []models.Voucher `json:"issued"`
	Failed  []FailedCode     `json:"failed"`
}

// Issuer creates voucher codes on routers and records them.
type Issuer struct {
	log    *slog.Logger
	router RouterClient
	store  VoucherStore
}

// NewIssuer builds a voucher issuer.
func NewIssuer(log *slog.Logger, router RouterClient, store VoucherStore) *Issuer {
	return &Issuer{log: log, router: router, store: store}
}

// Issue creates count voucher codes for a preset on one router. Codes are
// distinct within the batch; codeLength is the random part after the
// prefix, zero picks the default. Each code becomes a hotspot user with
// the code as both username and password. The router profile for the
// preset is created on first use.
func (i *Issuer) Issue(ctx context.Context, device models.Device, creds mikrotik.Credentials, presetName string, count, codeLength int) (BatchResult, error) {
	const op = "hotspot.Issue"

	preset, err := PresetByName(presetName)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if count <= 0 {
		return BatchResult{}, fmt.Errorf("%s: count must be positive", op)
	}
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}

	if err := i.ensureProfile(ctx, creds, preset); err != nil {
		return BatchResult{}, fmt.Errorf("%s: %w", op, err)
	}

	codes, err := i.distinctCodes(preset, count, codeLength)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%s: %w", op, err)
	}

	batchID := uuid.NewString()
	result := BatchResult{BatchID: batchID, Preset: preset, Issued: []models.Voucher{}, Failed: []FailedCode{}}

	for _, code := range codes {
		_, err := i.router.CreateHotspotUser(ctx, creds, mikrotik.HotspotUser{
			Username:    code,
			Password:    code,
			Profile:     preset.Name,
			LimitUptime: preset.Validity,
			Comment:     "voucher batch " + batchID,
		})
		if err != nil {
			var unavailable *adapters.UnavailableError
			if errors.As(err, &unavailable) {
				if len(result.Issued) == 0 {
					return BatchResult{}, fmt.Errorf("%s: %w", op, err)
				}
				// Router dropped mid-batch: keep what landed, mark the rest.
				result.Failed = append(result.Failed, FailedCode{Code: code, Reason: "router unreachable"})
				break
			}
			i.log.Warn("voucher rejected", slog.String("code", code), sl.Err(err))
			result.Failed = append(result.Failed, FailedCode{Code: code, Reason: err.Error()})
			continue
		}
		result.Issued = append(result.Issued, models.Voucher{
			DeviceID:  device.ID,
			BatchID:   batchID,
			Code:      code,
			Profile:   preset.Name,
			Validity:  preset.Validity,
			CreatedAt: time.Now().UTC(),
			IsActive:  true,
		})
	}

	if len(result.Issued) > 0 {
		if err := i.store.SaveVoucherBatch(ctx, result.Issued); err != nil {
			return BatchResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return result, nil
}

// ensureProfile creates the preset's hotspot profile unless the router
// already has it.
func (i *Issuer) ensureProfile(ctx context.Context, creds mikrotik.Credentials, preset Preset) error {
	profiles, err := i.router.HotspotProfiles(ctx, creds)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p["name"] == preset.Name {
			return nil
		}
	}
	_, err = i.router.CreateHotspotProfile(ctx, creds, mikrotik.HotspotProfile{
		Name:           preset.Name,
		RateLimit:      preset.RateLimit,
		SharedUsers:    1,
		SessionTimeout: preset.Validity,
	})
	return err
}

// distinctCodes draws codes until count distinct ones exist.
func (i *Issuer) distinctCodes(preset Preset, count, length int) ([]string, error) {
	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)
	for len(codes) < count {
		code, err := random.Code(preset.Prefix(), length)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// Summary reports the hotspot state of one router for the dashboard: user
// and session counts plus a per-profile breakdown.
func (i *Issuer) Summary(ctx context.Context, creds mikrotik.Credentials) (map[string]any, error) {
	const op = "hotspot.Summary"

	users, err := i.router.HotspotUsers(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sessions, err := i.router.ActiveSessions(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byProfile := map[string]int{}
	unused := 0
	for _, u := range users {
		byProfile[u["profile"]]++
		if uptime := u["uptime"]; uptime == "" || uptime == "0s" {
			unused++
		}
	}

	var bytesIn, bytesOut int64
	for _, sess := range sessions {
		bytesIn += parseBytes(sess["bytes-in"])
		bytesOut += parseBytes(sess["bytes-out"])
	}

	return map[string]any{
		"total_users":     len(users),
		"unused_vouchers": unused,
		"active_sessions": len(sessions),
		"by_profile":      byProfile,
		"bytes_in":        bytesIn,
		"bytes_out":       bytesOut,
	}, nil
}

func parseBytes(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
