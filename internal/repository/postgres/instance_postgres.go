package postgres

import (
	"context"
	"database/sql"
	"time"

	"docsign/internal/database"
	"docsign/internal/model"
	"docsign/internal/repository"
)

// InstancePostgres is a PostgreSQL implementation of repository.InstanceRepository.
type InstancePostgres struct {
	db *sql.DB
}

func NewInstancePostgres(db *sql.DB) *InstancePostgres {
	return &InstancePostgres{db: db}
}

var _ repository.InstanceRepository = (*InstancePostgres)(nil)

// CreateWithSlots inserts the instance and its slots in one transaction.
func (r *InstancePostgres) CreateWithSlots(ctx context.Context, inst *model.Instance, slots []model.SignatureSlot) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const q = `
			INSERT INTO template_instances (id, template_id, customer_id, requester_email, docx_key, pdf_key, signed_pdf_key, pdf_sha256, status, created_at, updated_at, signed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := tx.ExecContext(ctx, q,
			inst.ID,
			inst.TemplateID,
			inst.CustomerID,
			inst.RequesterEmail,
			inst.DocxKey,
			inst.PdfKey,
			inst.SignedPdfKey,
			inst.PdfSha256,
			string(inst.Status),
			inst.CreatedAt,
			inst.UpdatedAt,
			inst.SignedAt,
		); err != nil {
			return err
		}

		const qSlot = `
			INSERT INTO template_instance_signature_slots (id, instance_id, slot_key, page_index, x, y, w, h, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		for _, s := range slots {
			if _, err := tx.ExecContext(ctx, qSlot, s.ID, inst.ID, s.SlotKey, s.PageIndex, s.X, s.Y, s.W, s.H, s.Order); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *InstancePostgres) FindByID(ctx context.Context, id string) (*model.Instance, error) {
	const q = `
		SELECT id, template_id, customer_id, requester_email, docx_key, pdf_key, signed_pdf_key, pdf_sha256, status, created_at, updated_at, signed_at
		FROM template_instances
		WHERE id = $1`
	var i model.Instance
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&i.ID,
		&i.TemplateID,
		&i.CustomerID,
		&i.RequesterEmail,
		&i.DocxKey,
		&i.PdfKey,
		&i.SignedPdfKey,
		&i.PdfSha256,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.SignedAt,
	); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InstancePostgres) ListSlots(ctx context.Context, instanceID string) ([]model.SignatureSlot, error) {
	const q = `
		SELECT id, instance_id, slot_key, page_index, x, y, w, h, sort_order
		FROM template_instance_signature_slots
		WHERE instance_id = $1
		ORDER BY sort_order, slot_key`
	rows, err := r.db.QueryContext(ctx, q, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SignatureSlot, 0)
	for rows.Next() {
		var s model.SignatureSlot
		if err := rows.Scan(&s.ID, &s.InstanceID, &s.SlotKey, &s.PageIndex, &s.X, &s.Y, &s.W, &s.H, &s.Order); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *InstancePostgres) Purge(ctx context.Context, instanceID string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM template_instance_signature_slots WHERE instance_id = $1`, instanceID); err != nil {
			return err
		}
		const q = `
			UPDATE template_instances
			SET docx_key = NULL, pdf_key = NULL, signed_pdf_key = NULL, status = $2, updated_at = $3
			WHERE id = $1`
		res, err := tx.ExecContext(ctx, q, instanceID, string(model.InstanceCompleted), at)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
