package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docsign/internal/model"
)

type memStore struct {
	events []*model.AuditEvent
	err    error
}

func (m *memStore) Append(_ context.Context, e *model.AuditEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name, xff, peer, want string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "10.0.0.2:5555", "203.0.113.7"},
		{"single forwarded", " 198.51.100.1 ", "10.0.0.2:5555", "198.51.100.1"},
		{"blank forwarded", " , 10.0.0.1", "192.0.2.4:1234", "192.0.2.4"},
		{"peer with port", "", "192.0.2.4:1234", "192.0.2.4"},
		{"peer without port", "", "192.0.2.4", "192.0.2.4"},
		{"ipv6 peer", "", "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIP(tt.xff, tt.peer))
		})
	}
}

func TestLogEvent(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	touch := 5

	e, err := l.LogEvent(context.Background(), "inv-1", model.ActionSignatureSubmitted,
		Fingerprint{IP: "203.0.113.7", UserAgent: "UA", TouchPoints: &touch},
		map[string]any{"targets": 2, "seal": "skipped"})
	require.NoError(t, err)
	require.Len(t, store.events, 1)
	assert.Same(t, e, store.events[0])
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "inv-1", e.InviteID)
	assert.Equal(t, "203.0.113.7", e.IPAddress)
	assert.Equal(t, 5, *e.TouchPoints)
	assert.Equal(t, fixed, e.CreatedAt)
	assert.JSONEq(t, `{"targets":2,"seal":"skipped"}`, string(e.Extra))
}

func TestLogEvent_NoExtraAndStoreError(t *testing.T) {
	store := &memStore{}
	e, err := NewLogger(store).LogEvent(context.Background(), "inv-1", model.ActionOtpVerified, Fingerprint{}, nil)
	require.NoError(t, err)
	assert.Nil(t, e.Extra)

	store.err = errors.New("db down")
	_, err = NewLogger(store).LogEvent(context.Background(), "inv-1", model.ActionOtpVerified, Fingerprint{}, nil)
	assert.ErrorContains(t, err, "db down")
}

func TestFingerprintMerge(t *testing.T) {
	touch := 1
	got := Fingerprint{UserAgent: "body", Screen: "1920x1080"}.Merge(Fingerprint{IP: "1.2.3.4", UserAgent: "header", TouchPoints: &touch})
	assert.Equal(t, "1.2.3.4", got.IP)
	assert.Equal(t, "body", got.UserAgent)
	assert.Equal(t, "1920x1080", got.Screen)
	assert.Equal(t, &touch, got.TouchPoints)
}

func TestSummaryHTML(t *testing.T) {
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	signed := created.Add(2 * time.Hour)
	touch := 0
	inv := &model.Invite{CreatedAt: created, ExpiresAt: created.Add(168 * time.Hour), SignerName: "<b>Eve</b>", RecipientEmail: "eve@example.com"}
	inst := &model.Instance{CreatedAt: created, SignedAt: &signed}
	events := []model.AuditEvent{
		{Action: model.ActionSignatureSubmitted, IPAddress: "10.0.0.1", CreatedAt: created},
		{Action: model.ActionSignatureSubmitted, IPAddress: "203.0.113.9", GeoCountry: "IL", GeoCity: "Haifa", TouchPoints: &touch, CreatedAt: signed},
		{Action: model.ActionFilesPurged, IPAddress: "10.9.9.9", CreatedAt: signed.Add(time.Minute)},
	}

	html, err := SummaryHTML(inv, inst, events)
	require.NoError(t, err)
	s := string(html)
	assert.Contains(t, s, "2025-01-01 11:00:00 UTC")
	assert.Contains(t, s, "&lt;b&gt;Eve&lt;/b&gt;")
	assert.Contains(t, s, "eve@example.com")
	assert.Contains(t, s, "203.0.113.9")
	assert.Contains(t, s, "IL / Haifa")
	assert.NotContains(t, s, "10.9.9.9")
}

func TestSummaryHTML_WithoutSubmission(t *testing.T) {
	html, err := SummaryHTML(&model.Invite{}, &model.Instance{}, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "Signer environment")
	assert.True(t, strings.Count(string(html), "<td>-</td>") >= 3)
}

func TestWorkbook(t *testing.T) {
	touch := 3
	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	b, err := Workbook([]model.AuditEvent{
		{Action: model.ActionInviteSent, CreatedAt: at},
		{Action: model.ActionSignatureSubmitted, IPAddress: "203.0.113.1", TouchPoints: &touch, Extra: []byte(`{"targets":1}`), CreatedAt: at},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Action", rows[0][1])
	assert.Equal(t, "2025-05-06 07:08:09", rows[1][0])
	assert.Equal(t, model.ActionSignatureSubmitted, rows[2][1])
	assert.Equal(t, "203.0.113.1", rows[2][2])
	assert.Equal(t, "3", rows[2][8])
	assert.Equal(t, `{"targets":1}`, rows[2][11])
}
