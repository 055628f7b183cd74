package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsign/internal/audit"
	"docsign/internal/config"
	"docsign/internal/model"
	"docsign/internal/notify"
	"docsign/internal/otp"
	"docsign/internal/repository"
)

// Recipient is who an invite is sent to.
type Recipient struct {
	Email   string                `json:"email"`
	Name    string                `json:"name"`
	Channel model.DeliveryChannel `json:"channel"`
}

// IssuedInvite is a freshly created invite. OTP is only ever sent to the recipient.
type IssuedInvite struct {
	Invite *model.Invite `json:"invite"`
	Link   string        `json:"link"`
	OTP    string        `json:"-"`
}

type issuer struct {
	invites  repository.InviteRepository
	audit    *audit.Logger
	notifier notify.Notifier
	cfg      config.InviteConfig
	baseURL  string
	log      *zap.Logger
	now      func() time.Time
}

func (is *issuer) validate(r Recipient) (Recipient, error) {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if r.Email == "" {
		return r, ErrRecipientRequired
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return r, ErrRecipientRequired.WithDetails(map[string][]string{"email": {r.Email}})
	}
	switch {
	case r.Channel == "":
		r.Channel = model.ChannelEmail
	case !strings.EqualFold(string(r.Channel), string(model.ChannelEmail)):
		return r, ErrUnsupportedChannel.WithDetails(map[string][]string{"channel": {string(r.Channel)}})
	default:
		r.Channel = model.ChannelEmail
	}
	return r, nil
}

// issue creates the invite, moves the instance to AwaitingSignature, sends
// the link and code and records InviteSent. Delivery and audit failures are
// logged only.
func (is *issuer) issue(ctx context.Context, instanceID string, r Recipient, fp audit.Fingerprint) (*IssuedInvite, error) {
	r, err := is.validate(r)
	if err != nil {
		return nil, err
	}

	token, err := otp.NewToken()
	if err != nil {
		return nil, err
	}
	code, err := otp.NewCode(otp.DefaultDigits)
	if err != nil {
		return nil, err
	}
	hash, err := otp.Hash(code)
	if err != nil {
		return nil, err
	}

	now := is.now().UTC()
	inv := &model.Invite{
		ID:               uuid.NewString(),
		InstanceID:       instanceID,
		Token:            token,
		OtpHash:          hash,
		OtpExpiresAt:     now.Add(is.cfg.OtpTTL),
		ExpiresAt:        now.Add(is.cfg.LinkTTL),
		RequiresPassword: true,
		DeliveryChannel:  r.Channel,
		RecipientEmail:   r.Email,
		SignerName:       r.Name,
		SignerEmail:      r.Email,
		MaxUses:          1,
		Status:           model.InvitePending,
		CreatedAt:        now,
	}
	if err := is.invites.CreateForInstance(ctx, inv); err != nil {
		return nil, fmt.Errorf("save invite: %w", notFound(err, ErrInstanceNotFound))
	}

	issued := &IssuedInvite{Invite: inv, Link: is.link(token), OTP: code}
	delivered := is.deliver(ctx, issued)
	if _, err := is.audit.LogEvent(ctx, inv.ID, model.ActionInviteSent, fp, map[string]any{
		"channel":   inv.DeliveryChannel,
		"delivered": delivered,
	}); err != nil {
		is.log.Warn("audit invite sent failed", zap.String("invite_id", inv.ID), zap.Error(err))
	}
	return issued, nil
}

func (is *issuer) deliver(ctx context.Context, inv *IssuedInvite) bool {
	body, err := notify.InviteHTML(notify.InviteData{
		SignerName:   inv.Invite.SignerName,
		Link:         inv.Link,
		OTP:          inv.OTP,
		OtpExpiresAt: inv.Invite.OtpExpiresAt,
		ExpiresAt:    inv.Invite.ExpiresAt,
	})
	if err == nil {
		err = is.notifier.Send(ctx, notify.Message{
			To:      []string{inv.Invite.RecipientEmail},
			Subject: "Document waiting for your signature",
			HTML:    body,
		})
	}
	if err != nil {
		is.log.Warn("invite delivery failed", zap.String("invite_id", inv.Invite.ID), zap.Error(err))
		return false
	}
	return true
}

func (is *issuer) link(token string) string {
	return strings.TrimRight(is.baseURL, "/") + "/sign/" + token
}
