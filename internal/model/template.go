package model

import "time"

// TemplateStatus tracks how far a template has been prepared for filling.
type TemplateStatus string

const (
	TemplateUploaded       TemplateStatus = "Uploaded"
	TemplateFieldsDetected TemplateStatus = "FieldsDetected"
	TemplateMapped         TemplateStatus = "Mapped"
)

// Template represents an uploaded DOCX document definition owned by a customer.
type Template struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customer_id"`
	FileName   string         `json:"file_name"`
	StorageKey string         `json:"-"`
	MimeType   string         `json:"mime_type"`
	SizeBytes  int64          `json:"size_bytes"`
	Sha256     string         `json:"sha256"`
	Status     TemplateStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TemplateField is a data placeholder detected in a template.
type TemplateField struct {
	ID           string  `json:"id"`
	TemplateID   string  `json:"template_id"`
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Type         string  `json:"type"`
	IsRequired   bool    `json:"is_required"`
	Order        int     `json:"order"`
	DefaultValue *string `json:"default_value,omitempty"`
	DetectedFrom string  `json:"detected_from"`
}

// SignTag is the content-control tag that marks a signature anchor.
const SignTag = "SIGN"

// SignatureAnchor is a signature placeholder in a template, ordered by appearance.
type SignatureAnchor struct {
	ID         string  `json:"id"`
	TemplateID string  `json:"template_id"`
	Tag        string  `json:"tag"`
	Order      int     `json:"order"`
	Meta       *string `json:"meta,omitempty"`
}
