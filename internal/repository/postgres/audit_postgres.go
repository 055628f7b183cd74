package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"docsign/internal/model"
	"docsign/internal/repository"
)

// AuditPostgres is a PostgreSQL implementation of repository.AuditRepository.
type AuditPostgres struct {
	db *sql.DB
}

func NewAuditPostgres(db *sql.DB) *AuditPostgres {
	return &AuditPostgres{db: db}
}

var _ repository.AuditRepository = (*AuditPostgres)(nil)

func (r *AuditPostgres) Append(ctx context.Context, e *model.AuditEvent) error {
	const q = `
		INSERT INTO signature_audit_events (id, invite_id, action, ip_address, user_agent, platform, language, timezone,
			screen, touch_points, geo_country, geo_city, extra_json, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			NULLIF($9, ''), $10, NULLIF($11, ''), NULLIF($12, ''), $13::jsonb, $14)`
	var extra any
	if len(e.Extra) > 0 {
		extra = string(e.Extra)
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.InviteID,
		e.Action,
		e.IPAddress,
		e.UserAgent,
		e.Platform,
		e.Language,
		e.Timezone,
		e.Screen,
		e.TouchPoints,
		e.GeoCountry,
		e.GeoCity,
		extra,
		e.CreatedAt,
	)
	return err
}

const auditSelect = `
	SELECT e.id, e.invite_id, e.action, COALESCE(e.ip_address, ''), COALESCE(e.user_agent, ''), COALESCE(e.platform, ''),
		COALESCE(e.language, ''), COALESCE(e.timezone, ''), COALESCE(e.screen, ''), e.touch_points,
		COALESCE(e.geo_country, ''), COALESCE(e.geo_city, ''), e.extra_json::text, e.created_at
	FROM signature_audit_events e`

func (r *AuditPostgres) ListByInvite(ctx context.Context, inviteID string) ([]model.AuditEvent, error) {
	const q = auditSelect + ` WHERE e.invite_id = $1 ORDER BY e.created_at, e.id`
	return r.list(ctx, q, inviteID)
}

func (r *AuditPostgres) ListByInstance(ctx context.Context, instanceID string) ([]model.AuditEvent, error) {
	const q = auditSelect + `
	JOIN signature_invites i ON i.id = e.invite_id
	WHERE i.instance_id = $1
	ORDER BY e.created_at, e.id`
	return r.list(ctx, q, instanceID)
}

func (r *AuditPostgres) list(ctx context.Context, q string, arg string) ([]model.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.AuditEvent, 0)
	for rows.Next() {
		var (
			e     model.AuditEvent
			extra sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&e.InviteID,
			&e.Action,
			&e.IPAddress,
			&e.UserAgent,
			&e.Platform,
			&e.Language,
			&e.Timezone,
			&e.Screen,
			&e.TouchPoints,
			&e.GeoCountry,
			&e.GeoCity,
			&extra,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if extra.Valid {
			e.Extra = json.RawMessage(extra.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
