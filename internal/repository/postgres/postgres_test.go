package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/model"
	"docsign/internal/repository"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var templateCols = []string{"id", "customer_id", "file_name", "storage_key", "mime_type", "size_bytes", "sha256", "status", "created_at", "updated_at"}

func TestTemplatePostgres_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTemplatePostgres(db)
	now := time.Now().UTC()
	tpl := &model.Template{
		ID: "t1", CustomerID: "c1", FileName: "nda.docx", StorageKey: "templates/c1/t1/original.docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		SizeBytes: 42, Sha256: "abc", Status: model.TemplateUploaded, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery("INSERT INTO templates").
		WithArgs(tpl.ID, tpl.CustomerID, tpl.FileName, tpl.StorageKey, tpl.MimeType, tpl.SizeBytes, tpl.Sha256, "Uploaded", now, now).
		WillReturnRows(sqlmock.NewRows(templateCols).
			AddRow(tpl.ID, tpl.CustomerID, tpl.FileName, tpl.StorageKey, tpl.MimeType, tpl.SizeBytes, tpl.Sha256, "Uploaded", now, now))

	out, err := repo.Create(context.Background(), tpl)
	require.NoError(t, err)
	assert.Equal(t, model.TemplateUploaded, out.Status)
	assert.Equal(t, tpl.StorageKey, out.StorageKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplatePostgres_FindByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM templates WHERE id = ").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	out, err := NewTemplatePostgres(db).FindByID(context.Background(), "missing")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplatePostgres_ListByCustomer(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("SELECT COUNT").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM templates").WithArgs("c1", 10, 0).
		WillReturnRows(sqlmock.NewRows(templateCols).
			AddRow("t2", "c1", "b.docx", "k2", "m", 1, "s", "Uploaded", now, now).
			AddRow("t1", "c1", "a.docx", "k1", "m", 1, "s", "FieldsDetected", now, now))

	page, err := NewTemplatePostgres(db).ListByCustomer(context.Background(), "c1", repository.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, model.TemplateFieldsDetected, page.Items[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplatePostgres_ReplaceDetection(t *testing.T) {
	db, mock := newMock(t)
	fields := []model.TemplateField{{ID: "f1", Key: "ClientName", Label: "Client", Type: "text", Order: 1, DetectedFrom: "contentControl"}}
	anchors := []model.SignatureAnchor{{ID: "a1", Tag: model.SignTag, Order: 1}, {ID: "a2", Tag: model.SignTag, Order: 2}}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM template_fields").WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM template_signature_anchors").WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO template_fields").
		WithArgs("f1", "t1", "ClientName", "Client", "text", false, 1, nil, "contentControl").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO template_signature_anchors").WithArgs("a1", "t1", "SIGN", 1, nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO template_signature_anchors").WithArgs("a2", "t1", "SIGN", 2, nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE templates SET status").WithArgs("t1", "FieldsDetected").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTemplatePostgres(db).ReplaceDetection(context.Background(), "t1", fields, anchors)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplatePostgres_ReplaceDetection_RollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM template_fields").WithArgs("t1").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := NewTemplatePostgres(db).ReplaceDetection(context.Background(), "t1", nil, nil)
	assert.EqualError(t, err, "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstancePostgres_CreateWithSlots(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	pdfKey := "templates/c1/t1/filled/i1/filled.pdf"
	inst := &model.Instance{ID: "i1", TemplateID: "t1", CustomerID: "c1", PdfKey: &pdfKey, Status: model.InstancePdfReadyWithSlots, CreatedAt: now, UpdatedAt: now}
	slots := []model.SignatureSlot{{ID: "s1", SlotKey: "default.1", PageIndex: 0, X: 0.1, Y: 0.2, W: 0.15, H: 0.04, Order: 1}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO template_instances").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO template_instance_signature_slots").
		WithArgs("s1", "i1", "default.1", 0, 0.1, 0.2, 0.15, 0.04, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewInstancePostgres(db).CreateWithSlots(context.Background(), inst, slots))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstancePostgres_FindByID_NullKeys(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM template_instances").WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id", "customer_id", "requester_email", "docx_key", "pdf_key", "signed_pdf_key", "pdf_sha256", "status", "created_at", "updated_at", "signed_at"}).
			AddRow("i1", "t1", "c1", "", nil, "k.pdf", nil, "", "Completed", now, now, now))

	inst, err := NewInstancePostgres(db).FindByID(context.Background(), "i1")
	require.NoError(t, err)
	assert.Nil(t, inst.DocxKey)
	require.NotNil(t, inst.PdfKey)
	assert.Equal(t, "k.pdf", *inst.PdfKey)
	assert.NotNil(t, inst.SignedAt)
	assert.Equal(t, model.InstanceCompleted, inst.Status)
}

func TestInstancePostgres_Purge(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM template_instance_signature_slots").WithArgs("i1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE template_instances").WithArgs("i1", "Completed", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewInstancePostgres(db).Purge(context.Background(), "i1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitePostgres_CreateForInstance(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	inv := &model.Invite{ID: "v1", InstanceID: "i1", Token: "tok", OtpHash: "h", OtpExpiresAt: now, ExpiresAt: now,
		DeliveryChannel: model.ChannelEmail, RecipientEmail: "a@example.com", MaxUses: 1, Status: model.InvitePending, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO signature_invites").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE template_instances SET status").WithArgs("i1", "AwaitingSignature").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, NewInvitePostgres(db).CreateForInstance(context.Background(), inv))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO signature_invites").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE template_instances SET status").WithArgs("i1", "AwaitingSignature").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, NewInvitePostgres(db).CreateForInstance(context.Background(), inv), sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitePostgres_MarkOpened(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now()
	mock.ExpectExec("UPDATE signature_invites").WithArgs("v1", "Opened", at, "Pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE signature_invites").WithArgs("v1", "Opened", at, "Pending").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewInvitePostgres(db)
	ok, err := repo.MarkOpened(context.Background(), "v1", at)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkOpened(context.Background(), "v1", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitePostgres_RevokeActive(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("UPDATE signature_invites SET status").
		WithArgs("i1", "Revoked", "Pending", "Opened").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1").AddRow("v2"))

	ids, err := NewInvitePostgres(db).RevokeActive(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, ids)
}

func TestInvitePostgres_CompleteSigning(t *testing.T) {
	at := time.Now()

	t.Run("signs invite and instance", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE signature_invites").WithArgs("v1", "Signed", at, "Pending", "Opened").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE template_instances").WithArgs("i1", "Signed", "k/signed.pdf", at).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewInvitePostgres(db).CompleteSigning(context.Background(), "v1", "i1", "k/signed.pdf", at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("signed, revoked or used up invite is not updated", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE signature_invites SET status = \$2, signed_at = \$3, uses = uses \+ 1\s+WHERE id = \$1 AND status IN \(\$4, \$5\) AND uses < max_uses`).
			WithArgs("v1", "Signed", at, "Pending", "Opened").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := NewInvitePostgres(db).CompleteSigning(context.Background(), "v1", "i1", "k/signed.pdf", at)
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuditPostgres_AppendAndList(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	touch := 2
	e := &model.AuditEvent{ID: "e1", InviteID: "v1", Action: model.ActionOtpVerified, IPAddress: "1.2.3.4", TouchPoints: &touch, Extra: []byte(`{"a":1}`), CreatedAt: now}

	mock.ExpectExec("INSERT INTO signature_audit_events").
		WithArgs("e1", "v1", "OtpVerified", "1.2.3.4", "", "", "", "", "", &touch, "", "", `{"a":1}`, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM signature_audit_events e JOIN signature_invites").WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "invite_id", "action", "ip", "ua", "platform", "language", "timezone", "screen", "touch", "country", "city", "extra", "created_at"}).
			AddRow("e1", "v1", "OtpVerified", "1.2.3.4", "", "", "", "", "", 2, "", "", `{"a":1}`, now).
			AddRow("e2", "v1", "FilesPurged", "", "", "", "", "", "", nil, "", "", nil, now))

	repo := NewAuditPostgres(db)
	require.NoError(t, repo.Append(context.Background(), e))
	events, err := repo.ListByInstance(context.Background(), "i1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, *events[0].TouchPoints)
	assert.JSONEq(t, `{"a":1}`, string(events[0].Extra))
	assert.Nil(t, events[1].TouchPoints)
	assert.Nil(t, events[1].Extra)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLocker(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT pg_try_advisory_lock").WithArgs("sign:tok").
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs("sign:tok").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT pg_try_advisory_lock").WithArgs("sign:tok").
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(false))

	l := NewAdvisoryLocker(db)
	unlock, ok, err := l.TryLock(context.Background(), "sign:tok")
	require.NoError(t, err)
	require.True(t, ok)
	unlock()

	unlock, ok, err = l.TryLock(context.Background(), "sign:tok")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, unlock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
