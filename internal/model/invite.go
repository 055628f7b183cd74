package model

import "time"

// InviteStatus is the state of a signing session.
type InviteStatus string

const (
	InvitePending InviteStatus = "Pending"
	InviteOpened  InviteStatus = "Opened"
	InviteSigned  InviteStatus = "Signed"
	InviteExpired InviteStatus = "Expired"
	InviteRevoked InviteStatus = "Revoked"
)

// DeliveryChannel names how an invite reaches the signer.
type DeliveryChannel string

const ChannelEmail DeliveryChannel = "Email"

// Invite is a single-use signing session bound to one instance.
// Only the salted OTP hash is stored.
type Invite struct {
	ID               string          `json:"id"`
	InstanceID       string          `json:"instance_id"`
	Token            string          `json:"-"`
	OtpHash          string          `json:"-"`
	OtpExpiresAt     time.Time       `json:"otp_expires_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
	RequiresPassword bool            `json:"requires_password"`
	DeliveryChannel  DeliveryChannel `json:"delivery_channel"`
	RecipientEmail   string          `json:"recipient_email"`
	SignerName       string          `json:"signer_name"`
	SignerEmail      string          `json:"signer_email"`
	MaxUses          int             `json:"max_uses"`
	Uses             int             `json:"uses"`
	Status           InviteStatus    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	OpenedAt         *time.Time      `json:"opened_at,omitempty"`
	SignedAt         *time.Time      `json:"signed_at,omitempty"`
}

// Usable reports whether the invite can still be acted on at now.
func (i *Invite) Usable(now time.Time) bool {
	if i.Status == InviteRevoked || i.Status == InviteExpired {
		return false
	}
	return now.Before(i.ExpiresAt)
}
