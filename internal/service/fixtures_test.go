package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docsign/internal/audit"
	"docsign/internal/config"
	"docsign/internal/docx"
	"docsign/internal/grant"
	"docsign/internal/metrics"
	"docsign/internal/model"
	"docsign/internal/notify"
	"docsign/internal/pdfdoc"
	"docsign/internal/repository"
	"docsign/internal/repository/memory"
	"docsign/internal/seal"
	"docsign/internal/storage"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// contractDocx has one ClientName field and the given number of SIGN controls.
func contractDocx(t *testing.T, anchors int) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document ` + wordNS + `><w:body>`)
	body.WriteString(`<w:p><w:r><w:t xml:space="preserve">Client: </w:t></w:r><w:sdt><w:sdtPr><w:tag w:val="ClientName"/></w:sdtPr><w:sdtContent><w:r><w:t>name</w:t></w:r></w:sdtContent></w:sdt></w:p>`)
	for i := 0; i < anchors; i++ {
		body.WriteString(`<w:p><w:sdt><w:sdtPr><w:tag w:val="SIGN"/></w:sdtPr><w:sdtContent><w:r><w:t>sign here</w:t></w:r></w:sdtContent></w:sdt></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func signaturePNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 2))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// textRenderer "renders" a DOCX to its plain text so the fake engine can find markers.
type textRenderer struct {
	err error
}

func (r *textRenderer) ConvertDocx(_ context.Context, b []byte) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	d, err := docx.Open(b)
	if err != nil {
		return nil, err
	}
	return []byte("%PDF-1.7\n" + d.Text()), nil
}

// fakeEngine places every needle found in the text on page 0, one line apart.
type fakeEngine struct {
	mu     sync.Mutex
	hide   func(needle string) bool
	erased []pdfdoc.Mark
	stamps []pdfdoc.Stamp
}

func (e *fakeEngine) PageSizes([]byte) ([]pdfdoc.Size, error) {
	return []pdfdoc.Size{{Width: 612, Height: 792}}, nil
}

func (e *fakeEngine) Search(doc []byte, needles []string) (map[string][]pdfdoc.Hit, error) {
	out := make(map[string][]pdfdoc.Hit)
	for i, n := range needles {
		if e.hide != nil && e.hide(n) {
			continue
		}
		if bytes.Contains(doc, []byte(n)) {
			out[n] = []pdfdoc.Hit{{Page: 0, Box: pdfdoc.Box{X: 72, Y: 600 - float64(i)*40, W: 90, H: 12}}}
		}
	}
	return out, nil
}

func (e *fakeEngine) Erase(doc []byte, marks []pdfdoc.Mark) ([]byte, error) {
	e.mu.Lock()
	e.erased = append(e.erased, marks...)
	e.mu.Unlock()
	return append(append([]byte(nil), doc...), "\n%erased"...), nil
}

func (e *fakeEngine) Composite(doc []byte, stamps []pdfdoc.Stamp) ([]byte, error) {
	e.mu.Lock()
	e.stamps = append(e.stamps, stamps...)
	e.mu.Unlock()
	return append(append([]byte(nil), doc...), "\n%signed"...), nil
}

type fakeSealer struct {
	result seal.Result
}

func (s *fakeSealer) Seal(_ context.Context, doc []byte, _ string) ([]byte, seal.Result) {
	if s.result.Status == "" {
		return doc, seal.Result{Status: seal.Applied}
	}
	return doc, s.result
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	return nil
}

// checkpointInvites records whether the signed PDF was already stored when
// the invite was marked Signed.
type checkpointInvites struct {
	repository.InviteRepository
	store       *storage.Memory
	signedFound bool
	// beforeComplete runs just before the conditional commit.
	beforeComplete func()
}

func (c *checkpointInvites) CompleteSigning(ctx context.Context, inviteID, instanceID, signedKey string, at time.Time) error {
	for _, k := range c.store.Keys() {
		if k == signedKey {
			c.signedFound = true
		}
	}
	if c.beforeComplete != nil {
		c.beforeComplete()
	}
	return c.InviteRepository.CompleteSigning(ctx, inviteID, instanceID, signedKey, at)
}

func auditFP() audit.Fingerprint {
	return audit.Fingerprint{IP: "203.0.113.7", UserAgent: "test-agent", GeoCountry: "ID"}
}

type testEnv struct {
	db       *memory.DB
	store    *storage.Memory
	grants   *grant.Memory
	engine   *fakeEngine
	renderer *textRenderer
	sealer   *fakeSealer
	notifier *fakeNotifier
	invites  *checkpointInvites

	inviteCfg config.InviteConfig
	templates TemplateService
	instances InstanceService
	sign      *signService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:       memory.New(),
		store:    storage.NewMemory(),
		grants:   grant.NewMemory(),
		engine:   &fakeEngine{},
		renderer: &textRenderer{},
		sealer:   &fakeSealer{},
		notifier: &fakeNotifier{},
	}
	env.invites = &checkpointInvites{InviteRepository: env.db.Invites(), store: env.store}
	env.inviteCfg = config.InviteConfig{OtpTTL: 10 * time.Minute, LinkTTL: 72 * time.Hour, GrantTTL: 30 * time.Minute}
	log := zap.NewNop()

	env.templates = NewTemplateService(env.store, env.db.Templates(), 1<<20)
	env.instances = env.instanceService(env.db.Invites())
	env.sign = NewSignService(SignDeps{
		Store:     env.store,
		Templates: env.db.Templates(),
		Instances: env.db.Instances(),
		Invites:   env.invites,
		Audit:     env.db.Audit(),
		Grants:    env.grants,
		Locker:    env.db.Locker(),
		Engine:    env.engine,
		Sealer:    env.sealer,
		Notifier:  env.notifier,
		Invite:    env.inviteCfg,
		Log:       log,
	}).(*signService)
	return env
}

// instanceService builds an instance service over the env's doubles with
// the given invite repository.
func (env *testEnv) instanceService(invites repository.InviteRepository) InstanceService {
	log := zap.NewNop()
	return NewInstanceService(InstanceDeps{
		Store:     env.store,
		Templates: env.db.Templates(),
		Instances: env.db.Instances(),
		Invites:   invites,
		Audit:     env.db.Audit(),
		Grants:    env.grants,
		Locator:   NewLocator(env.renderer, env.engine, config.LocatorConfig{DefaultWidth: 0.25, DefaultHeight: 0.08, Margin: 0.01}, metrics.Nop{}, log),
		Notifier:  env.notifier,
		Invite:    env.inviteCfg,
		BaseURL:   "https://sign.example.com/",
		Log:       log,
	})
}

// fill uploads a template with the given anchor count and fills it for one signer.
func (env *testEnv) fill(t *testing.T, anchors int) *FillResult {
	t.Helper()
	ctx := context.Background()
	tpl, err := env.templates.Upload(ctx, "cust-1", bytes.NewReader(contractDocx(t, anchors)), "contract.docx")
	require.NoError(t, err)
	_, err = env.templates.DetectFields(ctx, "", tpl.ID)
	require.NoError(t, err)

	res, err := env.instances.Fill(ctx, "cust-1", tpl.ID, FillRequest{
		Values:         map[string]string{"clientname": "Jane Roe"},
		Recipient:      Recipient{Email: "jane@example.com", Name: "Jane Roe"},
		RequesterEmail: "owner@example.com",
	}, auditFP())
	require.NoError(t, err)
	return res
}

func (env *testEnv) events(t *testing.T, inviteID, action string) []model.AuditEvent {
	t.Helper()
	all, err := env.db.Audit().ListByInvite(context.Background(), inviteID)
	require.NoError(t, err)
	var out []model.AuditEvent
	for _, e := range all {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
