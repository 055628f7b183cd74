// Package audit records client-fingerprinted events against signing invites.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsign/internal/model"
)

// Fingerprint describes the client that triggered an event. Every field is optional.
type Fingerprint struct {
	IP          string `json:"-"`
	UserAgent   string `json:"userAgent,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Language    string `json:"language,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Screen      string `json:"screen,omitempty"`
	TouchPoints *int   `json:"touchPoints,omitempty"`
	GeoCountry  string `json:"-"`
	GeoCity     string `json:"-"`
}

// Merge fills blank fields of f from o.
func (f Fingerprint) Merge(o Fingerprint) Fingerprint {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	f.IP = pick(f.IP, o.IP)
	f.UserAgent = pick(f.UserAgent, o.UserAgent)
	f.Platform = pick(f.Platform, o.Platform)
	f.Language = pick(f.Language, o.Language)
	f.Timezone = pick(f.Timezone, o.Timezone)
	f.Screen = pick(f.Screen, o.Screen)
	f.GeoCountry = pick(f.GeoCountry, o.GeoCountry)
	f.GeoCity = pick(f.GeoCity, o.GeoCity)
	if f.TouchPoints == nil {
		f.TouchPoints = o.TouchPoints
	}
	return f
}

// ClientIP returns the first X-Forwarded-For entry when present, else the
// peer address without its port.
func ClientIP(forwardedFor, peer string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(peer); err == nil {
		return host
	}
	return peer
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, e *model.AuditEvent) error
}

// Logger appends audit events.
type Logger struct {
	store Store
	now   func() time.Time
}

func NewLogger(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// LogEvent appends one event for inviteID. extra, when not nil, is stored as JSON.
func (l *Logger) LogEvent(ctx context.Context, inviteID, action string, fp Fingerprint, extra any) (*model.AuditEvent, error) {
	e := &model.AuditEvent{
		ID:          uuid.NewString(),
		InviteID:    inviteID,
		Action:      action,
		IPAddress:   fp.IP,
		UserAgent:   fp.UserAgent,
		Platform:    fp.Platform,
		Language:    fp.Language,
		Timezone:    fp.Timezone,
		Screen:      fp.Screen,
		TouchPoints: fp.TouchPoints,
		GeoCountry:  fp.GeoCountry,
		GeoCity:     fp.GeoCity,
		CreatedAt:   l.now().UTC(),
	}
	if extra != nil {
		b, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("encode audit extra: %w", err)
		}
		e.Extra = b
	}
	if err := l.store.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}
	return e, nil
}
