package notify

import (
	"bytes"
	"html/template"
	"time"
)

var inviteTmpl = template.Must(template.New("invite").Parse(`<p>Hello{{if .SignerName}} {{.SignerName}}{{end}},</p>
<p>A document is waiting for your signature.</p>
<p><a href="{{.Link}}">Open the document</a></p>
<p>Your one-time code is <strong>{{.OTP}}</strong>. It expires at {{.OtpExpiresAt.UTC.Format "2006-01-02 15:04"}} UTC.</p>
<p>The link is valid until {{.ExpiresAt.UTC.Format "2006-01-02 15:04"}} UTC.</p>`))

var completedTmpl = template.Must(template.New("completed").Parse(`<p>The document {{.FileName}} was signed{{if .SignerName}} by {{.SignerName}}{{end}} on {{.SignedAt.UTC.Format "2006-01-02 15:04"}} UTC.</p>
<p>The signed PDF and the audit trail are attached.</p>
{{.Summary}}`))

// InviteData fills the invite email.
type InviteData struct {
	SignerName   string
	Link         string
	OTP          string
	OtpExpiresAt time.Time
	ExpiresAt    time.Time
}

// CompletedData fills the completion email. Summary is trusted HTML.
type CompletedData struct {
	FileName   string
	SignerName string
	SignedAt   time.Time
	Summary    template.HTML
}

func InviteHTML(d InviteData) (string, error) {
	return execute(inviteTmpl, d)
}

func CompletedHTML(d CompletedData) (string, error) {
	return execute(completedTmpl, d)
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
