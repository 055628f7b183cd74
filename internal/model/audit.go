package model

import (
	"encoding/json"
	"time"
)

// Audit actions written over an invite's lifetime.
const (
	ActionInviteSent         = "InviteSent"
	ActionLinkOpened         = "LinkOpened"
	ActionOtpVerified        = "OtpVerified"
	ActionSignatureSubmitted = "SignatureSubmitted"
	ActionFilesPurged        = "FilesPurged"
	ActionInviteRevoked      = "InviteRevoked"
)

// AuditEvent is an immutable record of something that happened to an invite.
type AuditEvent struct {
	ID          string          `json:"id"`
	InviteID    string          `json:"invite_id"`
	Action      string          `json:"action"`
	IPAddress   string          `json:"ip_address,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	Platform    string          `json:"platform,omitempty"`
	Language    string          `json:"language,omitempty"`
	Timezone    string          `json:"timezone,omitempty"`
	Screen      string          `json:"screen,omitempty"`
	TouchPoints *int            `json:"touch_points,omitempty"`
	GeoCountry  string          `json:"geo_country,omitempty"`
	GeoCity     string          `json:"geo_city,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
