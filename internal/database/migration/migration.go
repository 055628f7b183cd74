package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is the last table created by steps; its presence means the schema is in place.
const sentinelTable = "public.signature_audit_events"

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_templates",
		SQL: `CREATE TABLE IF NOT EXISTS templates (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  customer_id UUID        NOT NULL,
  file_name   TEXT        NOT NULL,
  storage_key TEXT        NOT NULL UNIQUE,
  mime_type   TEXT        NOT NULL,
  size_bytes  BIGINT      NOT NULL CHECK (size_bytes >= 0),
  sha256      TEXT        NOT NULL,
  status      TEXT        NOT NULL DEFAULT 'Uploaded',
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_templates_customer_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_templates_customer_id ON templates (customer_id);`,
	},
	{
		Name: "create_table_template_fields",
		SQL: `CREATE TABLE IF NOT EXISTS template_fields (
  id            UUID    PRIMARY KEY DEFAULT uuid_generate_v4(),
  template_id   UUID    NOT NULL REFERENCES templates (id) ON DELETE CASCADE,
  key           TEXT    NOT NULL,
  label         TEXT    NOT NULL,
  type          TEXT    NOT NULL DEFAULT 'text',
  is_required   BOOLEAN NOT NULL DEFAULT false,
  sort_order    INT     NOT NULL,
  default_value TEXT,
  detected_from TEXT    NOT NULL
);`,
	},
	{
		Name: "create_unique_index_template_fields_key",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS ux_template_fields_template_key ON template_fields (template_id, lower(key));`,
	},
	{
		Name: "create_table_template_signature_anchors",
		SQL: `CREATE TABLE IF NOT EXISTS template_signature_anchors (
  id          UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
  template_id UUID NOT NULL REFERENCES templates (id) ON DELETE CASCADE,
  tag         TEXT NOT NULL,
  sort_order  INT  NOT NULL,
  meta        TEXT
);`,
	},
	{
		Name: "create_table_template_instances",
		SQL: `CREATE TABLE IF NOT EXISTS template_instances (
  id              UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  template_id     UUID        NOT NULL REFERENCES templates (id) ON DELETE CASCADE,
  customer_id     UUID        NOT NULL,
  requester_email TEXT        NOT NULL DEFAULT '',
  docx_key        TEXT,
  pdf_key         TEXT,
  signed_pdf_key  TEXT,
  pdf_sha256      TEXT        NOT NULL DEFAULT '',
  status          TEXT        NOT NULL,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  signed_at       TIMESTAMPTZ
);`,
	},
	{
		Name: "create_table_template_instance_signature_slots",
		SQL: `CREATE TABLE IF NOT EXISTS template_instance_signature_slots (
  id          UUID             PRIMARY KEY DEFAULT uuid_generate_v4(),
  instance_id UUID             NOT NULL REFERENCES template_instances (id) ON DELETE CASCADE,
  slot_key    TEXT             NOT NULL,
  page_index  INT              NOT NULL CHECK (page_index >= 0),
  x           DOUBLE PRECISION NOT NULL CHECK (x BETWEEN 0 AND 1),
  y           DOUBLE PRECISION NOT NULL CHECK (y BETWEEN 0 AND 1),
  w           DOUBLE PRECISION NOT NULL CHECK (w BETWEEN 0 AND 1),
  h           DOUBLE PRECISION NOT NULL CHECK (h BETWEEN 0 AND 1),
  sort_order  INT              NOT NULL,
  UNIQUE (instance_id, slot_key)
);`,
	},
	{
		Name: "create_table_signature_invites",
		SQL: `CREATE TABLE IF NOT EXISTS signature_invites (
  id                UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  instance_id       UUID        NOT NULL REFERENCES template_instances (id) ON DELETE CASCADE,
  token             TEXT        NOT NULL UNIQUE,
  otp_hash          TEXT        NOT NULL,
  otp_expires_at    TIMESTAMPTZ NOT NULL,
  expires_at        TIMESTAMPTZ NOT NULL,
  requires_password BOOLEAN     NOT NULL DEFAULT true,
  delivery_channel  TEXT        NOT NULL,
  recipient_email   TEXT        NOT NULL,
  signer_name       TEXT        NOT NULL DEFAULT '',
  signer_email      TEXT        NOT NULL DEFAULT '',
  max_uses          INT         NOT NULL DEFAULT 1,
  uses              INT         NOT NULL DEFAULT 0,
  status            TEXT        NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  opened_at         TIMESTAMPTZ,
  signed_at         TIMESTAMPTZ
);`,
	},
	{
		Name: "create_index_signature_invites_instance_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_signature_invites_instance_id ON signature_invites (instance_id);`,
	},
	{
		Name: "create_table_signature_audit_events",
		SQL: `CREATE TABLE IF NOT EXISTS signature_audit_events (
  id           UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  invite_id    UUID        NOT NULL REFERENCES signature_invites (id) ON DELETE CASCADE,
  action       VARCHAR(64) NOT NULL,
  ip_address   TEXT,
  user_agent   TEXT,
  platform     TEXT,
  language     TEXT,
  timezone     TEXT,
  screen       TEXT,
  touch_points INT,
  geo_country  TEXT,
  geo_city     TEXT,
  extra_json   JSONB,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_signature_audit_events_invite_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_signature_audit_events_invite_id ON signature_audit_events (invite_id, created_at);`,
	},
}

// EnsureMigrated runs the schema steps unless the sentinel table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"))
	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	query := fmt.Sprintf("SELECT to_regclass('%s') IS NOT NULL", sentinelTable)
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Debug("db_migration_step",
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int("steps", len(steps)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
