package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"docsign/internal/audit"
	"docsign/internal/config"
	"docsign/internal/grant"
	"docsign/internal/metrics"
	"docsign/internal/model"
	"docsign/internal/notify"
	"docsign/internal/otp"
	"docsign/internal/pdfdoc"
	"docsign/internal/repository"
	"docsign/internal/seal"
	"docsign/internal/storage"
)

// Sealer applies a certificate seal and reports whether it did.
type Sealer interface {
	Seal(ctx context.Context, doc []byte, signerName string) ([]byte, seal.Result)
}

// BootstrapView is what the signing page needs before the code is entered.
type BootstrapView struct {
	SignerName       string                `json:"signerName"`
	ExpiresAt        time.Time             `json:"expiresAt"`
	RequiresPassword bool                  `json:"requiresPassword"`
	Status           model.InviteStatus    `json:"status"`
	PdfURL           string                `json:"pdfUrl"`
	Slots            []model.SignatureSlot `json:"slots"`
}

// SubmitResult reports a completed submission.
type SubmitResult struct {
	InstanceID string               `json:"instanceId"`
	Status     model.InstanceStatus `json:"status"`
	Targets    int                  `json:"targets"`
	Seal       seal.Result          `json:"seal"`
}

// SignService serves the public signing flow behind an invite token.
type SignService interface {
	// Bootstrap returns the invite summary and marks a Pending invite Opened.
	Bootstrap(ctx context.Context, token string, fp audit.Fingerprint) (*BootstrapView, error)
	// VerifyOtp checks the code and returns a grant id proving it.
	VerifyOtp(ctx context.Context, token, code string, fp audit.Fingerprint) (string, error)
	// OpenPdf streams the unsigned PDF to a verified signer.
	OpenPdf(ctx context.Context, token, grantID string) (io.ReadCloser, error)
	// Submit stamps the signature, seals, stores and completes the instance.
	// At most one Submit per token runs at a time.
	Submit(ctx context.Context, token, grantID string, sub Submission, fp audit.Fingerprint) (*SubmitResult, error)
}

// SignDeps groups the collaborators of the signing service.
type SignDeps struct {
	Store        storage.Storage
	Templates    repository.TemplateRepository
	Instances    repository.InstanceRepository
	Invites      repository.InviteRepository
	Audit        repository.AuditRepository
	Grants       grant.Store
	Locker       repository.Locker
	Engine       PDFEngine
	Sealer       Sealer
	Notifier     notify.Notifier
	Metrics      metrics.Recorder
	Invite       config.InviteConfig
	SealRequired bool
	Log          *zap.Logger
}

type signService struct {
	d     SignDeps
	audit *audit.Logger
	now   func() time.Time
}

func NewSignService(d SignDeps) SignService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return &signService{d: d, audit: audit.NewLogger(d.Audit), now: time.Now}
}

// loadUsable finds an invite whose link is still valid. A link past its
// expiry is marked Expired.
func (s *signService) loadUsable(ctx context.Context, token string) (*model.Invite, error) {
	if token == "" {
		return nil, ErrInviteNotFound
	}
	inv, err := s.d.Invites.FindByToken(ctx, token)
	if err != nil {
		return nil, notFound(err, ErrInviteNotFound)
	}
	now := s.now()
	if inv.Usable(now) {
		return inv, nil
	}
	if !now.Before(inv.ExpiresAt) {
		if err := s.d.Invites.MarkExpired(ctx, inv.ID); err != nil {
			s.d.Log.Warn("mark invite expired failed", zap.String("invite_id", inv.ID), zap.Error(err))
		}
	}
	return nil, ErrInviteNotFound
}

func (s *signService) Bootstrap(ctx context.Context, token string, fp audit.Fingerprint) (*BootstrapView, error) {
	inv, err := s.loadUsable(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status == model.InviteSigned {
		return nil, ErrAlreadySigned
	}
	if inv.Status == model.InvitePending {
		opened, err := s.d.Invites.MarkOpened(ctx, inv.ID, s.now().UTC())
		if err != nil {
			return nil, err
		}
		if opened {
			inv.Status = model.InviteOpened
			s.logEvent(ctx, inv.ID, model.ActionLinkOpened, fp, nil)
		}
	}
	slots, err := s.d.Instances.ListSlots(ctx, inv.InstanceID)
	if err != nil {
		return nil, err
	}
	return &BootstrapView{
		SignerName:       inv.SignerName,
		ExpiresAt:        inv.ExpiresAt,
		RequiresPassword: inv.RequiresPassword,
		Status:           inv.Status,
		PdfURL:           "/api/sign/" + token + "/pdf",
		Slots:            slots,
	}, nil
}

func (s *signService) VerifyOtp(ctx context.Context, token, code string, fp audit.Fingerprint) (string, error) {
	inv, err := s.loadUsable(ctx, token)
	if err != nil {
		return "", err
	}
	if inv.Status == model.InviteSigned {
		return "", ErrAlreadySigned
	}
	if !s.now().Before(inv.OtpExpiresAt) {
		return "", ErrOtpExpired
	}
	if !otp.Verify(code, inv.OtpHash) {
		return "", ErrOtpInvalid
	}

	grantID, err := s.d.Grants.Grant(ctx, token, s.d.Invite.GrantTTL)
	if err != nil {
		return "", err
	}
	s.logEvent(ctx, inv.ID, model.ActionOtpVerified, fp, nil)
	if inv.Status == model.InvitePending {
		if _, err := s.d.Invites.MarkOpened(ctx, inv.ID, s.now().UTC()); err != nil {
			s.d.Log.Warn("mark invite opened failed", zap.String("invite_id", inv.ID), zap.Error(err))
		}
	}
	return grantID, nil
}

func (s *signService) OpenPdf(ctx context.Context, token, grantID string) (io.ReadCloser, error) {
	inv, inst, err := s.gate(ctx, token, grantID)
	if err != nil {
		return nil, err
	}
	rc, _, err := s.d.Store.Get(ctx, *inst.PdfKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrPdfNotFound
		}
		return nil, fmt.Errorf("open pdf for invite %s: %w", inv.ID, err)
	}
	return rc, nil
}

// gate checks, in order: link valid, not signed, code verified, unsigned PDF
// present. Signed is checked before the grant because purge revokes it.
func (s *signService) gate(ctx context.Context, token, grantID string) (*model.Invite, *model.Instance, error) {
	inv, err := s.loadUsable(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if inv.Status == model.InviteSigned {
		return nil, nil, ErrAlreadySigned
	}
	ok, err := s.d.Grants.Valid(ctx, token, grantID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrOtpNotVerified
	}
	inst, err := s.d.Instances.FindByID(ctx, inv.InstanceID)
	if err != nil {
		return nil, nil, notFound(err, ErrPdfNotFound)
	}
	if inst.PdfKey == nil || *inst.PdfKey == "" {
		return nil, nil, ErrPdfNotFound
	}
	return inv, inst, nil
}

func (s *signService) Submit(ctx context.Context, token, grantID string, sub Submission, fp audit.Fingerprint) (*SubmitResult, error) {
	ctx, span := startSpan(ctx, "sign.Submit")
	defer span.End()

	unlock, ok, err := s.d.Locker.TryLock(ctx, "docsign:submit:"+token)
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !ok {
		return nil, ErrSubmissionInProgress
	}
	defer unlock()

	inv, inst, err := s.gate(ctx, token, grantID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("instance.id", inst.ID))
	slots, err := s.d.Instances.ListSlots(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	targets, err := resolveTargets(slots, sub)
	if err != nil {
		return nil, err
	}
	img, err := decodeSignatureImage(sub.SignatureImage)
	if err != nil {
		return nil, err
	}

	pdf, err := storage.ReadAll(ctx, s.d.Store, *inst.PdfKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrPdfNotFound
		}
		return nil, err
	}
	sizes, err := s.d.Engine.PageSizes(pdf)
	if err != nil {
		return nil, fmt.Errorf("read page sizes: %w", err)
	}
	if len(sizes) == 0 {
		return nil, ErrPdfNotFound
	}

	signedAt := s.now().UTC()
	text := caption(inv.SignerName, signedAt, boolOr(sub.DrawName, true), boolOr(sub.DrawTimestamp, true))
	stamps := make([]pdfdoc.Stamp, 0, len(targets))
	for _, t := range targets {
		page := pdfdoc.ClampPage(t.page, len(sizes))
		stamps = append(stamps, pdfdoc.Stamp{
			Page:     page,
			Box:      pdfdoc.Place(t.rect, sizes[page]),
			Image:    img,
			Caption:  text,
			FontSize: 10,
		})
	}
	signed, err := s.d.Engine.Composite(pdf, stamps)
	if err != nil {
		return nil, fmt.Errorf("composite signature: %w", err)
	}

	signerName := inv.SignerName
	if signerName == "" {
		signerName = inv.SignerEmail
	}
	signed, sealRes := s.d.Sealer.Seal(ctx, signed, signerName)
	s.d.Metrics.SealResult(string(sealRes.Status))
	if sealRes.Status != seal.Applied {
		if s.d.SealRequired {
			return nil, ErrSealFailed.WithDetails(map[string][]string{"reason": {sealRes.Reason}})
		}
		s.d.Log.Warn("signed without certificate seal", zap.String("invite_id", inv.ID), zap.String("reason", sealRes.Reason))
	}

	signedKey := storage.InstanceKey(inst.CustomerID, inst.TemplateID, inst.ID, storage.ArtifactSignedPdf)
	if _, err := s.d.Store.Put(ctx, signedKey, bytes.NewReader(signed), storage.PutObjectOptions{
		Size: int64(len(signed)), ContentType: "application/pdf",
	}); err != nil {
		return nil, fmt.Errorf("store signed pdf: %w", err)
	}
	if err := s.d.Invites.CompleteSigning(ctx, inv.ID, inst.ID, signedKey, signedAt); err != nil {
		if delErr := s.d.Store.Delete(ctx, signedKey); delErr != nil {
			s.d.Log.Warn("rollback signed pdf failed", zap.String("key", signedKey), zap.Error(delErr))
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.conflictReason(ctx, token)
		}
		return nil, fmt.Errorf("complete signing: %w", err)
	}
	s.d.Metrics.SignatureSubmitted()

	inst.Status = model.InstanceSigned
	inst.SignedPdfKey = &signedKey
	inst.SignedAt = &signedAt
	inv.Status = model.InviteSigned
	inv.SignedAt = &signedAt

	if sub.ClientInfo != nil {
		c := sub.ClientInfo
		fp = audit.Fingerprint{
			UserAgent: c.UserAgent, Platform: c.Platform, Language: c.Language,
			Timezone: c.Timezone, Screen: c.Screen, TouchPoints: c.TouchPoints,
		}.Merge(fp)
	}
	extra := map[string]any{"targets": len(targets), "seal": sealRes.Status}
	if sealRes.Reason != "" {
		extra["sealReason"] = sealRes.Reason
	}
	s.logEvent(ctx, inv.ID, model.ActionSignatureSubmitted, fp, extra)

	// Post-processing outlives a disconnected client.
	post := context.WithoutCancel(ctx)
	s.notifyCompleted(post, inv, inst, signed)
	status := s.purge(post, inv, inst, fp)

	return &SubmitResult{InstanceID: inst.ID, Status: status, Targets: len(targets), Seal: sealRes}, nil
}

// conflictReason tells a concurrent signature apart from a revocation that
// landed between the gate and the commit.
func (s *signService) conflictReason(ctx context.Context, token string) error {
	inv, err := s.d.Invites.FindByToken(ctx, token)
	if err == nil && inv.Status == model.InviteSigned {
		return ErrAlreadySigned
	}
	return ErrInviteNotFound
}

func (s *signService) notifyCompleted(ctx context.Context, inv *model.Invite, inst *model.Instance, signed []byte) {
	log := s.d.Log.With(zap.String("invite_id", inv.ID), zap.String("instance_id", inst.ID))

	to := make([]string, 0, 2)
	for _, addr := range []string{firstNonBlank(inv.SignerEmail, inv.RecipientEmail), inst.RequesterEmail} {
		if addr != "" && (len(to) == 0 || to[0] != addr) {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return
	}

	events, err := s.d.Audit.ListByInvite(ctx, inv.ID)
	if err != nil {
		log.Warn("load audit trail failed", zap.Error(err))
	}
	summary, err := audit.SummaryHTML(inv, inst, events)
	if err != nil {
		log.Warn("render audit summary failed", zap.Error(err))
	}
	fileName := "document"
	if tpl, err := s.d.Templates.FindByID(ctx, inst.TemplateID); err == nil {
		fileName = tpl.FileName
	}
	body, err := notify.CompletedHTML(notify.CompletedData{
		FileName:   fileName,
		SignerName: inv.SignerName,
		SignedAt:   *inst.SignedAt,
		Summary:    summary,
	})
	if err != nil {
		log.Warn("render completion email failed", zap.Error(err))
		return
	}

	attachments := []notify.Attachment{{Name: "signed.pdf", ContentType: "application/pdf", Data: signed}}
	if wb, err := audit.Workbook(events); err == nil {
		attachments = append(attachments, notify.Attachment{
			Name:        "audit-trail.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        wb,
		})
	} else {
		log.Warn("build audit workbook failed", zap.Error(err))
	}

	if err := s.d.Notifier.Send(ctx, notify.Message{
		To:          to,
		Subject:     "Signed document: " + fileName,
		HTML:        body,
		Attachments: attachments,
	}); err != nil {
		log.Warn("completion email failed", zap.Error(err))
	}
}

// purge deletes every artifact independently, then completes the instance.
// It returns the resulting instance status.
func (s *signService) purge(ctx context.Context, inv *model.Invite, inst *model.Instance, fp audit.Fingerprint) model.InstanceStatus {
	log := s.d.Log.With(zap.String("instance_id", inst.ID))

	var deleted, failed []string
	for _, key := range []*string{inst.DocxKey, inst.PdfKey, inst.SignedPdfKey} {
		if key == nil || *key == "" {
			continue
		}
		if err := s.d.Store.Delete(ctx, *key); err != nil {
			log.Warn("purge delete failed", zap.String("key", *key), zap.Error(err))
			s.d.Metrics.PurgeFailure(artifactName(*key))
			failed = append(failed, *key)
			continue
		}
		deleted = append(deleted, *key)
	}

	if err := s.d.Grants.Revoke(ctx, inv.Token); err != nil {
		log.Warn("grant revoke failed", zap.Error(err))
	}
	if err := s.d.Instances.Purge(ctx, inst.ID, s.now().UTC()); err != nil {
		log.Error("purge instance failed", zap.Error(err))
		return model.InstanceSigned
	}
	s.logEvent(ctx, inv.ID, model.ActionFilesPurged, fp, map[string]any{"deleted": len(deleted), "failed": failed})
	return model.InstanceCompleted
}

func (s *signService) logEvent(ctx context.Context, inviteID, action string, fp audit.Fingerprint, extra any) {
	if _, err := s.audit.LogEvent(ctx, inviteID, action, fp, extra); err != nil {
		s.d.Log.Warn("audit event failed", zap.String("invite_id", inviteID), zap.String("action", action), zap.Error(err))
	}
}

func artifactName(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
