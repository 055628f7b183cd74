package postgres

import (
	"context"
	"database/sql"
	"time"

	"docsign/internal/database"
	"docsign/internal/model"
	"docsign/internal/repository"
)

// InvitePostgres is a PostgreSQL implementation of repository.InviteRepository.
type InvitePostgres struct {
	db *sql.DB
}

func NewInvitePostgres(db *sql.DB) *InvitePostgres {
	return &InvitePostgres{db: db}
}

var _ repository.InviteRepository = (*InvitePostgres)(nil)

const inviteColumns = `id, instance_id, token, otp_hash, otp_expires_at, expires_at, requires_password, delivery_channel,
	recipient_email, signer_name, signer_email, max_uses, uses, status, created_at, opened_at, signed_at`

func scanInvite(s interface{ Scan(...any) error }) (*model.Invite, error) {
	var i model.Invite
	if err := s.Scan(
		&i.ID,
		&i.InstanceID,
		&i.Token,
		&i.OtpHash,
		&i.OtpExpiresAt,
		&i.ExpiresAt,
		&i.RequiresPassword,
		&i.DeliveryChannel,
		&i.RecipientEmail,
		&i.SignerName,
		&i.SignerEmail,
		&i.MaxUses,
		&i.Uses,
		&i.Status,
		&i.CreatedAt,
		&i.OpenedAt,
		&i.SignedAt,
	); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InvitePostgres) CreateForInstance(ctx context.Context, inv *model.Invite) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const q = `
			INSERT INTO signature_invites (` + inviteColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
		if _, err := tx.ExecContext(ctx, q,
			inv.ID,
			inv.InstanceID,
			inv.Token,
			inv.OtpHash,
			inv.OtpExpiresAt,
			inv.ExpiresAt,
			inv.RequiresPassword,
			string(inv.DeliveryChannel),
			inv.RecipientEmail,
			inv.SignerName,
			inv.SignerEmail,
			inv.MaxUses,
			inv.Uses,
			string(inv.Status),
			inv.CreatedAt,
			inv.OpenedAt,
			inv.SignedAt,
		); err != nil {
			return err
		}

		const qInst = `UPDATE template_instances SET status = $2, updated_at = now() WHERE id = $1`
		res, err := tx.ExecContext(ctx, qInst, inv.InstanceID, string(model.InstanceAwaitingSignature))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func (r *InvitePostgres) FindByToken(ctx context.Context, token string) (*model.Invite, error) {
	const q = `SELECT ` + inviteColumns + ` FROM signature_invites WHERE token = $1`
	return scanInvite(r.db.QueryRowContext(ctx, q, token))
}

func (r *InvitePostgres) ListByInstance(ctx context.Context, instanceID string) ([]model.Invite, error) {
	const q = `SELECT ` + inviteColumns + ` FROM signature_invites WHERE instance_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r *InvitePostgres) MarkOpened(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
		UPDATE signature_invites
		SET status = $2, opened_at = COALESCE(opened_at, $3)
		WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, q, id, string(model.InviteOpened), at, string(model.InvitePending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *InvitePostgres) MarkExpired(ctx context.Context, id string) error {
	const q = `UPDATE signature_invites SET status = $2 WHERE id = $1 AND status IN ($3, $4)`
	_, err := r.db.ExecContext(ctx, q, id, string(model.InviteExpired), string(model.InvitePending), string(model.InviteOpened))
	return err
}

func (r *InvitePostgres) RevokeActive(ctx context.Context, instanceID string) ([]string, error) {
	const q = `
		UPDATE signature_invites SET status = $2
		WHERE instance_id = $1 AND status IN ($3, $4)
		RETURNING id`
	rows, err := r.db.QueryContext(ctx, q, instanceID, string(model.InviteRevoked), string(model.InvitePending), string(model.InviteOpened))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *InvitePostgres) CompleteSigning(ctx context.Context, inviteID, instanceID, signedKey string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const qInvite = `
			UPDATE signature_invites SET status = $2, signed_at = $3, uses = uses + 1
			WHERE id = $1 AND status IN ($4, $5) AND uses < max_uses`
		res, err := tx.ExecContext(ctx, qInvite, inviteID, string(model.InviteSigned), at,
			string(model.InvitePending), string(model.InviteOpened))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrConflict
		}

		const qInst = `
			UPDATE template_instances
			SET status = $2, signed_pdf_key = $3, signed_at = $4, updated_at = $4
			WHERE id = $1`
		_, err = tx.ExecContext(ctx, qInst, instanceID, string(model.InstanceSigned), signedKey, at)
		return err
	})
}
