package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"docsign/internal/audit"
	"docsign/internal/config"
	"docsign/internal/docx"
	"docsign/internal/grant"
	"docsign/internal/model"
	"docsign/internal/notify"
	"docsign/internal/repository"
	"docsign/internal/storage"
)

// FillRequest carries field values and the signer to invite.
type FillRequest struct {
	Values         map[string]string `json:"values"`
	Recipient      Recipient         `json:"recipient"`
	RequesterEmail string            `json:"requesterEmail"`
}

// FillResult describes a filled, rendered and invited instance.
type FillResult struct {
	Instance  *model.Instance       `json:"instance"`
	Slots     []model.SignatureSlot `json:"slots"`
	Invite    *IssuedInvite         `json:"invite"`
	Applied   []string              `json:"applied"`
	Unmatched []string              `json:"unmatched"`
}

// InstanceView is an instance with its slots and invites.
type InstanceView struct {
	Instance *model.Instance       `json:"instance"`
	Slots    []model.SignatureSlot `json:"slots"`
	Invites  []model.Invite        `json:"invites"`
	// PdfURL is a short-lived download link for the unsigned PDF, set while
	// the instance still has one.
	PdfURL string `json:"pdfUrl,omitempty"`
}

// previewURLTTL bounds the lifetime of InstanceView.PdfURL.
const previewURLTTL = 15 * time.Minute

// InstanceService fills templates into signable instances and manages their invites.
type InstanceService interface {
	Fill(ctx context.Context, owner, templateID string, req FillRequest, fp audit.Fingerprint) (*FillResult, error)
	Get(ctx context.Context, owner, id string) (*InstanceView, error)
	// Reissue revokes the active invites of an instance and sends a new one.
	Reissue(ctx context.Context, owner, id string, r Recipient, fp audit.Fingerprint) (*IssuedInvite, error)
	Revoke(ctx context.Context, owner, id string, fp audit.Fingerprint) ([]string, error)
	AuditTrail(ctx context.Context, owner, id string) ([]model.AuditEvent, error)
	AuditWorkbook(ctx context.Context, owner, id string) ([]byte, error)
}

// InstanceDeps groups the collaborators of the instance service.
type InstanceDeps struct {
	Store     storage.Storage
	Templates repository.TemplateRepository
	Instances repository.InstanceRepository
	Invites   repository.InviteRepository
	Audit     repository.AuditRepository
	Grants    grant.Store
	Locator   *Locator
	Notifier  notify.Notifier
	Invite    config.InviteConfig
	BaseURL   string
	Log       *zap.Logger
}

type instanceService struct {
	d      InstanceDeps
	issuer *issuer
	audit  *audit.Logger
	now    func() time.Time
}

func NewInstanceService(d InstanceDeps) InstanceService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s := &instanceService{d: d, audit: audit.NewLogger(d.Audit), now: time.Now}
	s.issuer = &issuer{
		invites:  d.Invites,
		audit:    s.audit,
		notifier: d.Notifier,
		cfg:      d.Invite,
		baseURL:  d.BaseURL,
		log:      d.Log,
		now:      func() time.Time { return s.now() },
	}
	return s
}

func (s *instanceService) Fill(ctx context.Context, owner, templateID string, req FillRequest, fp audit.Fingerprint) (*FillResult, error) {
	ctx, span := startSpan(ctx, "instance.Fill", attribute.String("template.id", templateID))
	defer span.End()

	if templateID == "" {
		return nil, ErrIDRequired
	}
	if _, err := s.issuer.validate(req.Recipient); err != nil {
		return nil, err
	}
	tpl, err := s.d.Templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, notFound(err, ErrTemplateNotFound)
	}
	if owner != "" && tpl.CustomerID != owner {
		return nil, ErrForbidden
	}

	src, err := storage.ReadAll(ctx, s.d.Store, tpl.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	doc, err := docx.Open(src)
	if err != nil {
		return nil, ErrInvalidDocument
	}
	fields, anchors, err := s.detection(ctx, tpl, doc)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(req.Values)+len(fields))
	for k, v := range req.Values {
		values[strings.ToLower(docx.NormalizeTag(k))] = v
	}
	var missing []string
	for _, f := range fields {
		k := strings.ToLower(docx.NormalizeTag(f.Key))
		if _, ok := values[k]; ok {
			continue
		}
		if f.DefaultValue != nil {
			values[k] = *f.DefaultValue
			continue
		}
		missing = append(missing, f.Key)
	}
	res := docx.Fill(doc, values)
	if len(missing) > 0 {
		return nil, ErrMissingReplacements.WithDetails(map[string][]string{
			"missing":   missing,
			"unmatched": res.Unmatched,
		})
	}
	filled, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize filled document: %w", err)
	}

	instanceID := uuid.NewString()
	docxKey := storage.InstanceKey(tpl.CustomerID, tpl.ID, instanceID, storage.ArtifactFilledDocx)
	pdfKey := storage.InstanceKey(tpl.CustomerID, tpl.ID, instanceID, storage.ArtifactFilledPdf)
	if _, err := s.d.Store.Put(ctx, docxKey, bytes.NewReader(filled), storage.PutObjectOptions{
		Size: int64(len(filled)), ContentType: docxMime,
	}); err != nil {
		return nil, fmt.Errorf("store filled docx: %w", err)
	}

	located, err := s.d.Locator.Locate(ctx, anchors, filled)
	if err != nil {
		s.rollback(ctx, docxKey)
		return nil, err
	}
	if _, err := s.d.Store.Put(ctx, pdfKey, bytes.NewReader(located.PDF), storage.PutObjectOptions{
		Size: int64(len(located.PDF)), ContentType: "application/pdf",
	}); err != nil {
		s.rollback(ctx, docxKey)
		return nil, fmt.Errorf("store filled pdf: %w", err)
	}

	now := s.now().UTC()
	sum := sha256.Sum256(located.PDF)
	status := model.InstancePdfReady
	if len(located.Slots) > 0 {
		status = model.InstancePdfReadyWithSlots
	}
	inst := &model.Instance{
		ID:             instanceID,
		TemplateID:     tpl.ID,
		CustomerID:     tpl.CustomerID,
		RequesterEmail: strings.TrimSpace(req.RequesterEmail),
		DocxKey:        &docxKey,
		PdfKey:         &pdfKey,
		PdfSha256:      hex.EncodeToString(sum[:]),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := range located.Slots {
		located.Slots[i].InstanceID = instanceID
	}
	if err := s.d.Instances.CreateWithSlots(ctx, inst, located.Slots); err != nil {
		s.rollback(ctx, docxKey, pdfKey)
		return nil, fmt.Errorf("save instance: %w", err)
	}

	issued, err := s.issuer.issue(ctx, instanceID, req.Recipient, fp)
	if err != nil {
		// the instance and its files stay; Reissue can still send an invite
		s.d.Log.Error("issue invite failed", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, ErrInviteNotIssued.WithDetails(map[string][]string{"instanceId": {instanceID}})
	}
	inst.Status = model.InstanceAwaitingSignature
	return &FillResult{
		Instance:  inst,
		Slots:     located.Slots,
		Invite:    issued,
		Applied:   res.Applied,
		Unmatched: res.Unmatched,
	}, nil
}

// detection returns the persisted fields and anchors, or scans the document
// when the template has never been through detection.
func (s *instanceService) detection(ctx context.Context, tpl *model.Template, doc *docx.Document) ([]model.TemplateField, []model.SignatureAnchor, error) {
	if tpl.Status == model.TemplateUploaded {
		res := docx.Scan(doc)
		fields := make([]model.TemplateField, 0, len(res.Fields))
		for _, f := range res.Fields {
			fields = append(fields, model.TemplateField{Key: f.Key, Label: f.Label, Order: f.Order})
		}
		anchors := make([]model.SignatureAnchor, 0, res.AnchorCount)
		for i := 1; i <= res.AnchorCount; i++ {
			anchors = append(anchors, model.SignatureAnchor{Tag: model.SignTag, Order: i})
		}
		return fields, anchors, nil
	}
	fields, err := s.d.Templates.ListFields(ctx, tpl.ID)
	if err != nil {
		return nil, nil, err
	}
	anchors, err := s.d.Templates.ListAnchors(ctx, tpl.ID)
	if err != nil {
		return nil, nil, err
	}
	return fields, anchors, nil
}

func (s *instanceService) rollback(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.d.Store.Delete(ctx, k); err != nil {
			s.d.Log.Warn("rollback delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func (s *instanceService) load(ctx context.Context, owner, id string) (*model.Instance, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	inst, err := s.d.Instances.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrInstanceNotFound)
	}
	if owner != "" && inst.CustomerID != owner {
		return nil, ErrForbidden
	}
	return inst, nil
}

func (s *instanceService) Get(ctx context.Context, owner, id string) (*InstanceView, error) {
	inst, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	slots, err := s.d.Instances.ListSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	invites, err := s.d.Invites.ListByInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &InstanceView{Instance: inst, Slots: slots, Invites: invites}
	if inst.PdfKey != nil {
		u, err := s.d.Store.PresignGet(ctx, *inst.PdfKey, previewURLTTL)
		if err != nil {
			s.d.Log.Warn("presign pdf failed", zap.String("instance_id", inst.ID), zap.Error(err))
		} else {
			view.PdfURL = u
		}
	}
	return view, nil
}

func (s *instanceService) Reissue(ctx context.Context, owner, id string, r Recipient, fp audit.Fingerprint) (*IssuedInvite, error) {
	if _, err := s.issuer.validate(r); err != nil {
		return nil, err
	}
	inst, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if inst.Status == model.InstanceSigned || inst.Status == model.InstanceCompleted || inst.PdfKey == nil {
		return nil, ErrInstanceClosed
	}
	if _, err := s.revokeActive(ctx, inst.ID, fp); err != nil {
		return nil, err
	}
	return s.issuer.issue(ctx, inst.ID, r, fp)
}

func (s *instanceService) Revoke(ctx context.Context, owner, id string, fp audit.Fingerprint) ([]string, error) {
	inst, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.revokeActive(ctx, inst.ID, fp)
}

func (s *instanceService) revokeActive(ctx context.Context, instanceID string, fp audit.Fingerprint) ([]string, error) {
	invites, err := s.d.Invites.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	ids, err := s.d.Invites.RevokeActive(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("revoke invites: %w", err)
	}
	revoked := make(map[string]bool, len(ids))
	for _, id := range ids {
		revoked[id] = true
	}
	for _, inv := range invites {
		if !revoked[inv.ID] {
			continue
		}
		if err := s.d.Grants.Revoke(ctx, inv.Token); err != nil {
			s.d.Log.Warn("grant revoke failed", zap.String("invite_id", inv.ID), zap.Error(err))
		}
		if _, err := s.audit.LogEvent(ctx, inv.ID, model.ActionInviteRevoked, fp, nil); err != nil {
			s.d.Log.Warn("audit invite revoked failed", zap.String("invite_id", inv.ID), zap.Error(err))
		}
	}
	return ids, nil
}

func (s *instanceService) AuditTrail(ctx context.Context, owner, id string) ([]model.AuditEvent, error) {
	if _, err := s.load(ctx, owner, id); err != nil {
		return nil, err
	}
	events, err := s.d.Audit.ListByInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

func (s *instanceService) AuditWorkbook(ctx context.Context, owner, id string) ([]byte, error) {
	events, err := s.AuditTrail(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return audit.Workbook(events)
}
