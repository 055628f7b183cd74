package postgres

import (
	"context"
	"database/sql"

	"docsign/internal/database"
	"docsign/internal/model"
	"docsign/internal/repository"
)

// TemplatePostgres is a PostgreSQL implementation of repository.TemplateRepository.
type TemplatePostgres struct {
	db *sql.DB
}

func NewTemplatePostgres(db *sql.DB) *TemplatePostgres {
	return &TemplatePostgres{db: db}
}

var _ repository.TemplateRepository = (*TemplatePostgres)(nil)

const templateColumns = `id, customer_id, file_name, storage_key, mime_type, size_bytes, sha256, status, created_at, updated_at`

func scanTemplate(s interface{ Scan(...any) error }) (*model.Template, error) {
	var t model.Template
	if err := s.Scan(
		&t.ID,
		&t.CustomerID,
		&t.FileName,
		&t.StorageKey,
		&t.MimeType,
		&t.SizeBytes,
		&t.Sha256,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a template row and returns the stored record.
func (r *TemplatePostgres) Create(ctx context.Context, t *model.Template) (*model.Template, error) {
	const q = `
		INSERT INTO templates (id, customer_id, file_name, storage_key, mime_type, size_bytes, sha256, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + templateColumns
	return scanTemplate(r.db.QueryRowContext(ctx, q,
		t.ID,
		t.CustomerID,
		t.FileName,
		t.StorageKey,
		t.MimeType,
		t.SizeBytes,
		t.Sha256,
		string(t.Status),
		t.CreatedAt,
		t.UpdatedAt,
	))
}

func (r *TemplatePostgres) FindByID(ctx context.Context, id string) (*model.Template, error) {
	const q = `SELECT ` + templateColumns + ` FROM templates WHERE id = $1`
	return scanTemplate(r.db.QueryRowContext(ctx, q, id))
}

// ListByCustomer returns templates using LIMIT/OFFSET pagination and a total count.
func (r *TemplatePostgres) ListByCustomer(ctx context.Context, customerID string, pq repository.PageQuery) (*repository.PageResult[model.Template], error) {
	const qCount = `SELECT COUNT(*) FROM templates WHERE ($1 = '' OR customer_id::text = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, customerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `SELECT ` + templateColumns + `
		FROM templates
		WHERE ($1 = '' OR customer_id::text = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, qList, customerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Template]{Items: items, Total: total}, nil
}

// Delete removes a template; fields, anchors and instances cascade.
func (r *TemplatePostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM templates WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *TemplatePostgres) ReplaceDetection(ctx context.Context, templateID string, fields []model.TemplateField, anchors []model.SignatureAnchor) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM template_fields WHERE template_id = $1`, templateID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM template_signature_anchors WHERE template_id = $1`, templateID); err != nil {
			return err
		}

		const qField = `
			INSERT INTO template_fields (id, template_id, key, label, type, is_required, sort_order, default_value, detected_from)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		for _, f := range fields {
			if _, err := tx.ExecContext(ctx, qField,
				f.ID, templateID, f.Key, f.Label, f.Type, f.IsRequired, f.Order, f.DefaultValue, f.DetectedFrom,
			); err != nil {
				return err
			}
		}

		const qAnchor = `
			INSERT INTO template_signature_anchors (id, template_id, tag, sort_order, meta)
			VALUES ($1, $2, $3, $4, $5)`
		for _, a := range anchors {
			if _, err := tx.ExecContext(ctx, qAnchor, a.ID, templateID, a.Tag, a.Order, a.Meta); err != nil {
				return err
			}
		}

		const qStatus = `UPDATE templates SET status = $2, updated_at = now() WHERE id = $1`
		_, err := tx.ExecContext(ctx, qStatus, templateID, string(model.TemplateFieldsDetected))
		return err
	})
}

func (r *TemplatePostgres) ListFields(ctx context.Context, templateID string) ([]model.TemplateField, error) {
	const q = `
		SELECT id, template_id, key, label, type, is_required, sort_order, default_value, detected_from
		FROM template_fields
		WHERE template_id = $1
		ORDER BY sort_order`
	rows, err := r.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.TemplateField, 0)
	for rows.Next() {
		var f model.TemplateField
		if err := rows.Scan(&f.ID, &f.TemplateID, &f.Key, &f.Label, &f.Type, &f.IsRequired, &f.Order, &f.DefaultValue, &f.DetectedFrom); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *TemplatePostgres) ListAnchors(ctx context.Context, templateID string) ([]model.SignatureAnchor, error) {
	const q = `
		SELECT id, template_id, tag, sort_order, meta
		FROM template_signature_anchors
		WHERE template_id = $1
		ORDER BY sort_order`
	rows, err := r.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SignatureAnchor, 0)
	for rows.Next() {
		var a model.SignatureAnchor
		if err := rows.Scan(&a.ID, &a.TemplateID, &a.Tag, &a.Order, &a.Meta); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
