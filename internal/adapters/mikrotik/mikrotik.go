// Package mikrotik manages MikroTik routers over the RouterOS API: WiFi
// configuration and the captive-portal hotspot tables used for vouchers.
//
// Every operation dials a fresh API connection with the caller-supplied
// credentials and closes it on return. RouterOS API calls block, so they go
// through a bounded pool that caps the number of concurrent router sessions.
package mikrotik

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/config"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

// ErrNotFound reports an absent router-side record (user, profile,
// interface).
var ErrNotFound = fmt.Errorf("mikrotik: not found")

// Credentials identify one router and the API account to use. Supplied per
// call; nothing is pooled or cached between operations.
type Credentials struct {
	Host     string
	Username string
	Password string
	Port     int
}

func (c Credentials) address(defaultPort int) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return c.Host + ":" + strconv.Itoa(port)
}

// HotspotUser is a hotspot account to create on the router.
type HotspotUser struct {
	Username        string
	Password        string
	Profile         string
	LimitUptime     string
	LimitBytesTotal int64
	Comment         string
}

// HotspotProfile is a hotspot rate/session preset to create on the router.
type HotspotProfile struct {
	Name           string
	RateLimit      string
	SharedUsers    int
	SessionTimeout string
}

// Service owns the worker pool and dial settings shared by all router
// operations.
type Service struct {
	log *slog.Logger
	cfg config.RouterOS
	sem chan struct{}
}

// NewService builds the shared router service. cfg.PoolSize bounds the
// number of concurrent router sessions.
func NewService(log *slog.Logger, cfg config.RouterOS) *Service {
	size := cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	return &Service{
		log: log,
		cfg: cfg,
		sem: make(chan struct{}, size),
	}
}

// run acquires a pool slot, dials, executes fn and closes the connection.
func (s *Service) run(ctx context.Context, creds Credentials, fn func(*routeros.Client) error) error {
	const op = "mikrotik.run"

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	defer func() { <-s.sem }()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	client, err := routeros.DialContext(dialCtx, creds.address(s.cfg.APIPort), creds.Username, creds.Password)
	if err != nil {
		s.log.Error("router connection failed", slog.String("host", creds.Host), sl.Err(err))
		return &adapters.UnavailableError{Host: creds.Host, Err: err}
	}
	defer client.Close()

	return fn(client)
}

func sentenceMaps(sentences []*proto.Sentence) []map[string]string {
	out := make([]map[string]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, s.Map)
	}
	return out
}

func firstMap(sentences []*proto.Sentence) map[string]string {
	if len(sentences) == 0 {
		return map[string]string{}
	}
	return sentences[0].Map
}

// SystemInfo returns the router's resource, identity and routerboard tables.
func (s *Service) SystemInfo(ctx context.Context, creds Credentials) (map[string]any, error) {
	var out map[string]any
	err := s.run(ctx, creds, func(c *routeros.Client) error {
		resource, err := c.RunContext(ctx, "/system/resource/print")
		if err != nil {
			return err
		}
		identity, err := c.RunContext(ctx, "/system/identity/print")
		if err != nil {
			return err
		}
		routerboard, err := c.RunContext(ctx, "/system/routerboard/print")
		if err != nil {
			return err
		}
		out = map[string]any{
			"resource":    firstMap(resource.Re),
			"identity":    firstMap(identity.Re),
			"routerboard": firstMap(routerboard.Re),
		}
		return nil
	})
	return out, err
}

// Reboot restarts the router.
func (s *Service) Reboot(ctx context.Context, creds Credentials) error {
	return s.run(ctx, creds, func(c *routeros.Client) error {
		_, err := c.RunContext(ctx, "/system/reboot")
		return err
	})
}

// WiFiSettings returns the wireless interfaces and security profiles.
func (s *Service) WiFiSettings(ctx context.Context, creds Credentials) (map[string]any, error) {
	var out map[string]any
	err := s.run(ctx, creds, func(c *routeros.Client) error {
		wireless, err := c.RunContext(ctx, "/interface/wireless/print")
		if err != nil {
			return err
		}
		security, err := c.RunContext(ctx, "/interface/wireless/security-profiles/print")
		if err != nil {
			return err
		}
		out = map[string]any{
			"interfaces":        sentenceMaps(wireless.Re),
			"security_profiles": sentenceMaps(security.Re),
		}
		return nil
	})
	return out, err
}

// SetWiFiPassword updates the WPA/WPA2 pre-shared keys of a security
// profile.
func (s *Service) SetWiFiPassword(ctx context.Context, creds Credentials, profile, password string) error {
	return s.run(ctx, creds, func(c *routeros.Client) error {
		found, err := c.RunContext(ctx, "/interface/wireless/security-profiles/print", "?name="+profile)
		if err != nil {
			return err
		}
		if len(found.Re) == 0 {
			return ErrNotFound
		}
		_, err = c.RunContext(ctx, "/interface/wireless/security-profiles/set",
			"=.id="+found.Re[0].Map[".id"],
			"=wpa2-pre-shared-key="+password,
			"=wpa-pre-shared-key="+password,
		)
		return err
	})
}

// SetWiFiSSID updates the SSID of every wireless interface.
func (s *Service) SetWiFiSSID(ctx context.Context, creds Credentials, ssid string) error {
	return s.run(ctx, creds, func(c *routeros.Client) error {
		wireless, err := c.RunContext(ctx, "/interface/wireless/print")
		if err != nil {
			return err
		}
		for _, iface := range wireless.Re {
			if _, err := c.RunContext(ctx, "/interface/wireless/set",
				"=.id="+iface.Map[".id"], "=ssid="+ssid); err != nil {
				return err
			}
		}
		return nil
	})
}

// HotspotUsers lists the hotspot user table.
func (s *Service) HotspotUsers(ctx context.Context, creds Credentials) ([]map[string]string, error) {
	var out []map[string]string
	err := s.run(ctx, creds, func(c *routeros.Client) error {
		users, err := c.RunContext(ctx, "/ip/hotspot/user/print")
		if err != nil {
			return err
		}
		out = sentenceMaps(users.Re)
		return nil
	})
	return out, err
}

// CreateHotspotUser adds a hotspot user and returns the created record id.
func (s *Service) CreateHotspotUser(ctx context.Context, creds Credentials, user HotspotUser) (string, error) {
	var id string
	err := s.run(ctx, creds, func(c *routeros.Client) error {
		args := []string{
			"/ip/hotspot/user/add",
			"=name=" + user.Username,
			"=password=" + user.Password,
			"=profile=" + user.Profile,
		}
		if user.LimitUptime != "" {
			args = append(args, "=limit-uptime="+user.LimitUptime)
		}
		if user.LimitBytesTotal > 0 {
			args = append(args, "=limit-bytes-total="+strconv.FormatInt(user.LimitBytesTotal, 10))
		}
		if user.Comment != "" {
			args = append(args, "=comment="+user.Comment)
		}
		reply, err := c.RunContext(ctx, args...)
		if err != nil {
			return err
		}
		id = reply.Done.Map["ret"]
		return nil
	})
	return id, err
}

// DeleteHotspotUser removes a hotspot user by name.
func (s *Service) DeleteHotspotUser(ctx context.Context, creds Credentials, username string) error {
	return s.run(ctx, creds, func(c *routeros.Client) error {
		found, err := c.RunContext(ctx, "/ip/hotspot/user/print", "?name="+username)
		if err != nil {
			return err
		}
		if len(found.Re) == 0 {
			return ErrNotFound
		}
		_, err = c.RunContext(ctx, "/ip/hotspot/user/remove", "=.id="+found.Re[0].Map[".id"])
		return err
	})
}

// ActiveSessions lists the hotspot active-session table.
func (s *Service) ActiveSessions(ctx context.Context, creds Credentials) ([]map[string]string, error) {
	var out []map[string]string
	err := s.run(ctx, creds, func(c *routeros.Client) error {
		active, err := c.RunContext(ctx, "/ip/hotspot/active/print")
		if err != nil {
			return err
		}
		out = sentenceMaps(active.Re)
		return nil
	})
	return out, err
}

// DisconnectSession drops one active hotspot session.
func (s *Service) DisconnectSession(ctx context.Context, creds Credentials, sessionID string) error {
	return s.run(ctx, creds, func(c *routeros.Client) error {
		_, err := c.RunContext(ctx, "/ip/hotspot/active/remove", "=.id="+sessionID)
		return err
	})
}

// HotspotProfiles lists the hotspot user profile table.
func (s *Service) HotspotProfiles(ctx context.Context, creds Credentials) ([]map[string]string, error) {
	var out []map[string]string
	err := s.run(ctx, creds, func(c *routeros.Client) error {
		profiles, err := c.RunContext(ctx, "/ip/hotspot/user/profile/print")
		if err != nil {
			return err
		}
		out = sentenceMaps(profiles.Re)
		return nil
	})
	return out, err
}

// CreateHotspotProfile adds a hotspot user profile and returns its id.
func (s *Service) CreateHotspotProfile(ctx context.Context, creds Credentials, profile HotspotProfile) (string, error) {
	var id string
	err := s.run(ctx, creds, func(c *routeros.Client) error {
		reply, err := c.RunContext(ctx, "/ip/hotspot/user/profile/add",
			"=name="+profile.Name,
			"=rate-limit="+profile.RateLimit,
			"=shared-users="+strconv.Itoa(profile.SharedUsers),
			"=session-timeout="+profile.SessionTimeout,
		)
		if err != nil {
			return err
		}
		id = reply.Done.Map["ret"]
		return nil
	})
	return id, err
}

// Adapter binds the shared service to one router's credentials, giving the
// uniform capability surface.
type Adapter struct {
	svc   *Service
	creds Credentials
}

// NewAdapter builds an adapter for one router.
func NewAdapter(svc *Service, creds Credentials) *Adapter {
	return &Adapter{svc: svc, creds: creds}
}

// Family reports the device family tag.
func (a *Adapter) Family() models.DeviceFamily { return models.FamilyMikroTik }

// Capabilities advertises the full router set including hotspot extras.
func (a *Adapter) Capabilities() []adapters.Capability {
	return []adapters.Capability{
		adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
		adapters.CapHotspotUsers, adapters.CapHotspotVouchers,
		adapters.CapHotspotProfiles, adapters.CapActiveSessions,
	}
}

// Status returns the system info tables.
func (a *Adapter) Status(ctx context.Context) (map[string]any, error) {
	return a.svc.SystemInfo(ctx, a.creds)
}

// WiFi returns the wireless configuration.
func (a *Adapter) WiFi(ctx context.Context) (map[string]any, error) {
	return a.svc.WiFiSettings(ctx, a.creds)
}

// SetWiFi applies a partial WiFi update. The password lands on the default
// security profile; the SSID on every wireless interface.
func (a *Adapter) SetWiFi(ctx context.Context, settings adapters.WiFiSettings) (map[string]any, error) {
	results := map[string]any{}
	if settings.Password != nil {
		if err := a.svc.SetWiFiPassword(ctx, a.creds, "default", *settings.Password); err != nil {
			return nil, err
		}
		results["password_updated"] = true
	}
	if settings.SSID != nil {
		if err := a.svc.SetWiFiSSID(ctx, a.creds, *settings.SSID); err != nil {
			return nil, err
		}
		results["ssid_updated"] = true
	}
	return results, nil
}

// Reboot restarts the router.
func (a *Adapter) Reboot(ctx context.Context) error {
	return a.svc.Reboot(ctx, a.creds)
}
