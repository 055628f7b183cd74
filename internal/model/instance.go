package model

import "time"

// InstanceStatus is the state of a filled template instance.
type InstanceStatus string

const (
	InstanceFilling           InstanceStatus = "Filling"
	InstancePdfReady          InstanceStatus = "PdfReady"
	InstancePdfReadyWithSlots InstanceStatus = "PdfReadyWithSlots"
	InstanceAwaitingSignature InstanceStatus = "AwaitingSignature"
	InstanceSigned            InstanceStatus = "Signed"
	InstanceCompleted         InstanceStatus = "Completed"
)

// Instance is one filled rendering of a template for one customer.
// Artifact keys are nil once the instance has been purged.
type Instance struct {
	ID             string         `json:"id"`
	TemplateID     string         `json:"template_id"`
	CustomerID     string         `json:"customer_id"`
	RequesterEmail string         `json:"requester_email,omitempty"`
	DocxKey        *string        `json:"-"`
	PdfKey         *string        `json:"-"`
	SignedPdfKey   *string        `json:"-"`
	PdfSha256      string         `json:"pdf_sha256,omitempty"`
	Status         InstanceStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	SignedAt       *time.Time     `json:"signed_at,omitempty"`
}

// SignatureSlot is a located signing target on an instance. Coordinates are
// normalized to the page with a top-left origin.
type SignatureSlot struct {
	ID         string  `json:"-"`
	InstanceID string  `json:"-"`
	SlotKey    string  `json:"key"`
	PageIndex  int     `json:"pageIndex"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Order      int     `json:"order"`
}
