package audit

import (
	"bytes"
	"html/template"
	"strconv"
	"time"

	"docsign/internal/model"
)

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"ts": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
	},
	"deref": func(p *int) string { return strconv.Itoa(*p) },
}).Parse(`<div style="font-family:Arial,Helvetica,sans-serif;font-size:14px">
<h3 style="margin:0 0 8px">Document metadata</h3>
<table style="border-collapse:collapse;width:100%;max-width:640px"><tbody>
<tr><td>PDF created</td><td>{{ts .PdfCreated}}</td></tr>
<tr><td>Invite sent</td><td>{{ts .InviteSent}}</td></tr>
<tr><td>Invite expires</td><td>{{ts .InviteExpires}}</td></tr>
<tr><td>Signed</td><td>{{ts .Signed}}</td></tr>
<tr><td>Signer name</td><td>{{.SignerName}}</td></tr>
<tr><td>Signer email</td><td>{{.SignerEmail}}</td></tr>
</tbody></table>
{{with .Client}}<h3 style="margin:16px 0 8px">Signer environment</h3>
<table style="border-collapse:collapse;width:100%;max-width:640px"><tbody>
<tr><td>IP address</td><td>{{.IPAddress}}</td></tr>
<tr><td>Country / city</td><td>{{.GeoCountry}}{{if .GeoCity}} / {{.GeoCity}}{{end}}</td></tr>
<tr><td>User agent</td><td>{{.UserAgent}}</td></tr>
<tr><td>Platform</td><td>{{.Platform}}</td></tr>
<tr><td>Language</td><td>{{.Language}}</td></tr>
<tr><td>Timezone</td><td>{{.Timezone}}</td></tr>
<tr><td>Screen</td><td>{{.Screen}}</td></tr>
<tr><td>Touch points</td><td>{{if .TouchPoints}}{{deref .TouchPoints}}{{end}}</td></tr>
</tbody></table>{{end}}
</div>`))

type summaryView struct {
	PdfCreated    *time.Time
	InviteSent    *time.Time
	InviteExpires *time.Time
	Signed        *time.Time
	SignerName    string
	SignerEmail   string
	Client        *model.AuditEvent
}

// SummaryHTML renders the signing metadata for the completion email. The
// client section comes from the last SignatureSubmitted event, if any.
func SummaryHTML(inv *model.Invite, inst *model.Instance, events []model.AuditEvent) (template.HTML, error) {
	v := summaryView{
		PdfCreated:    &inst.CreatedAt,
		InviteSent:    &inv.CreatedAt,
		InviteExpires: &inv.ExpiresAt,
		Signed:        inst.SignedAt,
		SignerName:    orDash(inv.SignerName),
		SignerEmail:   orDash(firstNonEmpty(inv.SignerEmail, inv.RecipientEmail)),
		Client:        LastSubmission(events),
	}
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// LastSubmission returns the latest SignatureSubmitted event or nil.
func LastSubmission(events []model.AuditEvent) *model.AuditEvent {
	var last *model.AuditEvent
	for i := range events {
		e := &events[i]
		if e.Action != model.ActionSignatureSubmitted {
			continue
		}
		if last == nil || !e.CreatedAt.Before(last.CreatedAt) {
			last = e
		}
	}
	return last
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
