package service

import (
	"database/sql"
	"errors"
)

// Kind classifies an Error for transport mapping.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindBusy
	KindInternal
)

// Error is a domain failure with a stable machine-readable code. Two errors
// are equal under errors.Is when their codes match, so sentinels can be
// compared against copies carrying details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string][]string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy of e carrying the given offending keys.
func (e *Error) WithDetails(details map[string][]string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrIDRequired          = newError(KindValidation, "IdRequired", "id is required")
	ErrReaderNil           = newError(KindValidation, "FileRequired", "file is required")
	ErrInvalidFileType     = newError(KindValidation, "InvalidFileType", "only .docx files are accepted")
	ErrFileTooLarge        = newError(KindValidation, "FileTooLarge", "file exceeds the upload limit")
	ErrInvalidDocument     = newError(KindValidation, "InvalidDocument", "file is not a valid docx document")
	ErrMissingReplacements = newError(KindValidation, "MissingReplacements", "values are missing for some fields")
	ErrRecipientRequired   = newError(KindValidation, "RecipientRequired", "recipient email is required")
	ErrUnsupportedChannel  = newError(KindValidation, "UnsupportedChannel", "delivery channel is not supported")
	ErrSlotRequired        = newError(KindValidation, "SlotRequired", "select a slot key or apply all slots")
	ErrUnknownSlotKey      = newError(KindValidation, "UnknownSlotKey", "slot key does not exist")
	ErrManualCoordinates   = newError(KindValidation, "ManualCoordinatesRequired", "pageIndex, x, y, width and height are required")
	ErrBadSignatureImage   = newError(KindValidation, "BadSignatureImage", "signature image must be a base64 PNG")

	ErrTemplateNotFound = newError(KindNotFound, "TemplateNotFound", "template not found")
	ErrInstanceNotFound = newError(KindNotFound, "InstanceNotFound", "instance not found")
	ErrInviteNotFound   = newError(KindNotFound, "NotFound", "invite not found or expired")
	ErrPdfNotFound      = newError(KindNotFound, "PdfNotFound", "document is not available")

	ErrOtpInvalid     = newError(KindUnauthorized, "OtpInvalid", "one-time code is incorrect")
	ErrOtpExpired     = newError(KindUnauthorized, "OtpExpired", "one-time code has expired")
	ErrOtpNotVerified = newError(KindUnauthorized, "OtpNotVerified", "one-time code has not been verified")

	ErrForbidden = newError(KindForbidden, "Forbidden", "access to this resource is not allowed")

	ErrAlreadySigned        = newError(KindConflict, "AlreadySigned", "document has already been signed")
	ErrInstanceClosed       = newError(KindConflict, "InstanceClosed", "instance no longer accepts invites")
	ErrSubmissionInProgress = newError(KindBusy, "SubmissionInProgress", "a submission for this link is already running")

	ErrSealFailed      = newError(KindInternal, "SealFailed", "document could not be sealed")
	ErrInviteNotIssued = newError(KindInternal, "InviteNotIssued", "instance was created but the invite could not be issued; reissue it")
)

// KindOf returns the Kind of a domain error, or KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// notFound maps sql.ErrNoRows to target and passes other errors through.
func notFound(err, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}
