// Package repository contains data access abstractions. Implementations live
// in subpackages: postgres for production and memory for tests and local runs.
// Missing rows are reported as sql.ErrNoRows.
package repository

import (
	"context"
	"errors"
	"time"

	"docsign/internal/model"
)

// ErrConflict is returned when a conditional update matched no row.
var ErrConflict = errors.New("conditional update matched no rows")

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}

// TemplateRepository persists templates and their detected fields and anchors.
type TemplateRepository interface {
	Create(ctx context.Context, t *model.Template) (*model.Template, error)
	FindByID(ctx context.Context, id string) (*model.Template, error)
	// ListByCustomer pages through templates newest first. An empty customerID lists all.
	ListByCustomer(ctx context.Context, customerID string, pq PageQuery) (*PageResult[model.Template], error)
	Delete(ctx context.Context, id string) error

	// ReplaceDetection swaps all fields and anchors of a template in one
	// transaction and marks it FieldsDetected.
	ReplaceDetection(ctx context.Context, templateID string, fields []model.TemplateField, anchors []model.SignatureAnchor) error
	ListFields(ctx context.Context, templateID string) ([]model.TemplateField, error)
	ListAnchors(ctx context.Context, templateID string) ([]model.SignatureAnchor, error)
}

// InstanceRepository persists filled instances and their located slots.
type InstanceRepository interface {
	CreateWithSlots(ctx context.Context, inst *model.Instance, slots []model.SignatureSlot) error
	FindByID(ctx context.Context, id string) (*model.Instance, error)
	ListSlots(ctx context.Context, instanceID string) ([]model.SignatureSlot, error)
	// Purge clears artifact keys, deletes slots and marks the instance Completed.
	Purge(ctx context.Context, instanceID string, at time.Time) error
}

// InviteRepository persists signing invites.
type InviteRepository interface {
	// CreateForInstance inserts the invite and moves its instance to
	// AwaitingSignature atomically.
	CreateForInstance(ctx context.Context, inv *model.Invite) error
	FindByToken(ctx context.Context, token string) (*model.Invite, error)
	ListByInstance(ctx context.Context, instanceID string) ([]model.Invite, error)
	// MarkOpened moves a Pending invite to Opened and reports whether it did.
	MarkOpened(ctx context.Context, id string, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, id string) error
	// RevokeActive revokes every Pending or Opened invite of the instance and returns their ids.
	RevokeActive(ctx context.Context, instanceID string) ([]string, error)
	// CompleteSigning marks the invite and its instance Signed in one
	// transaction and counts one use. It returns ErrConflict unless the
	// invite is Pending or Opened with uses left.
	CompleteSigning(ctx context.Context, inviteID, instanceID, signedKey string, at time.Time) error
}

// AuditRepository appends and reads audit events. Events are never updated.
type AuditRepository interface {
	Append(ctx context.Context, e *model.AuditEvent) error
	ListByInvite(ctx context.Context, inviteID string) ([]model.AuditEvent, error)
	ListByInstance(ctx context.Context, instanceID string) ([]model.AuditEvent, error)
}

// Locker provides non-blocking mutual exclusion keyed by string.
type Locker interface {
	// TryLock returns ok=false without waiting when key is held elsewhere.
	// unlock must be called exactly once when ok is true.
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}
