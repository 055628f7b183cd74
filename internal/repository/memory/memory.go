// Package memory implements the repository interfaces in process. It backs
// service tests and local runs without Postgres.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"docsign/internal/model"
	"docsign/internal/repository"
)

// DB holds every aggregate behind one mutex so multi-aggregate updates are atomic.
type DB struct {
	mu        sync.Mutex
	templates map[string]model.Template
	fields    map[string][]model.TemplateField
	anchors   map[string][]model.SignatureAnchor
	instances map[string]model.Instance
	slots     map[string][]model.SignatureSlot
	invites   map[string]model.Invite
	events    []model.AuditEvent

	locks map[string]struct{}
}

func New() *DB {
	return &DB{
		templates: map[string]model.Template{},
		fields:    map[string][]model.TemplateField{},
		anchors:   map[string][]model.SignatureAnchor{},
		instances: map[string]model.Instance{},
		slots:     map[string][]model.SignatureSlot{},
		invites:   map[string]model.Invite{},
		locks:     map[string]struct{}{},
	}
}

func (d *DB) Templates() *Templates { return &Templates{d} }
func (d *DB) Instances() *Instances { return &Instances{d} }
func (d *DB) Invites() *Invites { return &Invites{d} }
func (d *DB) Audit() *Audit { return &Audit{d} }
func (d *DB) Locker() *Locker { return &Locker{d} }

// Templates implements repository.TemplateRepository.
type Templates struct{ d *DB }

var _ repository.TemplateRepository = (*Templates)(nil)

func (r *Templates) Create(_ context.Context, t *model.Template) (*model.Template, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.templates[t.ID] = *t
	out := *t
	return &out, nil
}

func (r *Templates) FindByID(_ context.Context, id string) (*model.Template, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	t, ok := r.d.templates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (r *Templates) ListByCustomer(_ context.Context, customerID string, pq repository.PageQuery) (*repository.PageResult[model.Template], error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	all := make([]model.Template, 0)
	for _, t := range r.d.templates {
		if customerID == "" || t.CustomerID == customerID {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	lo := min(pq.Offset, total)
	hi := total
	if pq.Limit > 0 {
		hi = min(lo+pq.Limit, total)
	}
	return &repository.PageResult[model.Template]{Items: all[lo:hi], Total: total}, nil
}

func (r *Templates) Delete(_ context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	delete(r.d.templates, id)
	delete(r.d.fields, id)
	delete(r.d.anchors, id)
	for iid, inst := range r.d.instances {
		if inst.TemplateID == id {
			r.d.deleteInstance(iid)
		}
	}
	return nil
}

func (r *Templates) ReplaceDetection(_ context.Context, templateID string, fields []model.TemplateField, anchors []model.SignatureAnchor) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	t, ok := r.d.templates[templateID]
	if !ok {
		return sql.ErrNoRows
	}
	seen := map[string]bool{}
	fs := make([]model.TemplateField, 0, len(fields))
	for _, f := range fields {
		k := strings.ToLower(f.Key)
		if seen[k] {
			return repository.ErrConflict
		}
		seen[k] = true
		f.TemplateID = templateID
		fs = append(fs, f)
	}
	as := make([]model.SignatureAnchor, 0, len(anchors))
	for _, a := range anchors {
		a.TemplateID = templateID
		as = append(as, a)
	}
	r.d.fields[templateID] = fs
	r.d.anchors[templateID] = as
	t.Status = model.TemplateFieldsDetected
	t.UpdatedAt = time.Now().UTC()
	r.d.templates[templateID] = t
	return nil
}

func (r *Templates) ListFields(_ context.Context, templateID string) ([]model.TemplateField, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := append([]model.TemplateField{}, r.d.fields[templateID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *Templates) ListAnchors(_ context.Context, templateID string) ([]model.SignatureAnchor, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := append([]model.SignatureAnchor{}, r.d.anchors[templateID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// Instances implements repository.InstanceRepository.
type Instances struct{ d *DB }

var _ repository.InstanceRepository = (*Instances)(nil)

func (r *Instances) CreateWithSlots(_ context.Context, inst *model.Instance, slots []model.SignatureSlot) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.templates[inst.TemplateID]; !ok {
		return sql.ErrNoRows
	}
	r.d.instances[inst.ID] = cloneInstance(*inst)
	ss := make([]model.SignatureSlot, 0, len(slots))
	for _, s := range slots {
		s.InstanceID = inst.ID
		ss = append(ss, s)
	}
	r.d.slots[inst.ID] = ss
	return nil
}

func (r *Instances) FindByID(_ context.Context, id string) (*model.Instance, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inst, ok := r.d.instances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := cloneInstance(inst)
	return &out, nil
}

func (r *Instances) ListSlots(_ context.Context, instanceID string) ([]model.SignatureSlot, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := append([]model.SignatureSlot{}, r.d.slots[instanceID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *Instances) Purge(_ context.Context, instanceID string, at time.Time) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inst, ok := r.d.instances[instanceID]
	if !ok {
		return sql.ErrNoRows
	}
	delete(r.d.slots, instanceID)
	inst.DocxKey, inst.PdfKey, inst.SignedPdfKey = nil, nil, nil
	inst.Status = model.InstanceCompleted
	inst.UpdatedAt = at
	r.d.instances[instanceID] = inst
	return nil
}

// Invites implements repository.InviteRepository.
type Invites struct{ d *DB }

var _ repository.InviteRepository = (*Invites)(nil)

func (r *Invites) CreateForInstance(_ context.Context, inv *model.Invite) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inst, ok := r.d.instances[inv.InstanceID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, other := range r.d.invites {
		if other.Token == inv.Token {
			return repository.ErrConflict
		}
	}
	r.d.invites[inv.ID] = *inv
	inst.Status = model.InstanceAwaitingSignature
	inst.UpdatedAt = time.Now().UTC()
	r.d.instances[inst.ID] = inst
	return nil
}

func (r *Invites) FindByToken(_ context.Context, token string) (*model.Invite, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, inv := range r.d.invites {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *Invites) ListByInstance(_ context.Context, instanceID string) ([]model.Invite, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]model.Invite, 0)
	for _, inv := range r.d.invites {
		if inv.InstanceID == instanceID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Invites) MarkOpened(_ context.Context, id string, at time.Time) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inv, ok := r.d.invites[id]
	if !ok || inv.Status != model.InvitePending {
		return false, nil
	}
	inv.Status = model.InviteOpened
	if inv.OpenedAt == nil {
		inv.OpenedAt = &at
	}
	r.d.invites[id] = inv
	return true, nil
}

func (r *Invites) MarkExpired(_ context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inv, ok := r.d.invites[id]
	if ok && (inv.Status == model.InvitePending || inv.Status == model.InviteOpened) {
		inv.Status = model.InviteExpired
		r.d.invites[id] = inv
	}
	return nil
}

func (r *Invites) RevokeActive(_ context.Context, instanceID string) ([]string, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	ids := make([]string, 0)
	for id, inv := range r.d.invites {
		if inv.InstanceID != instanceID {
			continue
		}
		if inv.Status == model.InvitePending || inv.Status == model.InviteOpened {
			inv.Status = model.InviteRevoked
			r.d.invites[id] = inv
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Invites) CompleteSigning(_ context.Context, inviteID, instanceID, signedKey string, at time.Time) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inv, ok := r.d.invites[inviteID]
	if !ok || (inv.Status != model.InvitePending && inv.Status != model.InviteOpened) || inv.Uses >= inv.MaxUses {
		return repository.ErrConflict
	}
	inst, ok := r.d.instances[instanceID]
	if !ok {
		return sql.ErrNoRows
	}
	inv.Status = model.InviteSigned
	inv.SignedAt = &at
	inv.Uses++
	r.d.invites[inviteID] = inv

	key := signedKey
	inst.Status = model.InstanceSigned
	inst.SignedPdfKey = &key
	inst.SignedAt = &at
	inst.UpdatedAt = at
	r.d.instances[instanceID] = inst
	return nil
}

// Audit implements repository.AuditRepository.
type Audit struct{ d *DB }

var _ repository.AuditRepository = (*Audit)(nil)

func (r *Audit) Append(_ context.Context, e *model.AuditEvent) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.invites[e.InviteID]; !ok {
		return sql.ErrNoRows
	}
	r.d.events = append(r.d.events, *e)
	return nil
}

func (r *Audit) ListByInvite(_ context.Context, inviteID string) ([]model.AuditEvent, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]model.AuditEvent, 0)
	for _, e := range r.d.events {
		if e.InviteID == inviteID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Audit) ListByInstance(_ context.Context, instanceID string) ([]model.AuditEvent, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]model.AuditEvent, 0)
	for _, e := range r.d.events {
		if inv, ok := r.d.invites[e.InviteID]; ok && inv.InstanceID == instanceID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Locker implements repository.Locker with an in-process key set.
type Locker struct{ d *DB }

var _ repository.Locker = (*Locker)(nil)

func (l *Locker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.d.mu.Lock()
	defer l.d.mu.Unlock()
	if _, held := l.d.locks[key]; held {
		return nil, false, nil
	}
	l.d.locks[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.d.mu.Lock()
			delete(l.d.locks, key)
			l.d.mu.Unlock()
		})
	}, true, nil
}

func (d *DB) deleteInstance(id string) {
	delete(d.instances, id)
	delete(d.slots, id)
	kept := d.events[:0]
	for invID, inv := range d.invites {
		if inv.InstanceID == id {
			delete(d.invites, invID)
		}
	}
	for _, e := range d.events {
		if _, ok := d.invites[e.InviteID]; ok {
			kept = append(kept, e)
		}
	}
	d.events = kept
}

func cloneInstance(in model.Instance) model.Instance {
	out := in
	out.DocxKey = clonePtr(in.DocxKey)
	out.PdfKey = clonePtr(in.PdfKey)
	out.SignedPdfKey = clonePtr(in.SignedPdfKey)
	out.SignedAt = clonePtr(in.SignedAt)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
