package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsign/internal/docx"
	"docsign/internal/model"
	"docsign/internal/repository"
	"docsign/internal/storage"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// TemplateListResult is the service-level DTO for paginated templates.
type TemplateListResult struct {
	Items []model.Template `json:"data"`
	Total int              `json:"total"`
}

// Detection is the set of fields and signature anchors of a template.
type Detection struct {
	Fields  []model.TemplateField   `json:"fields"`
	Anchors []model.SignatureAnchor `json:"anchors"`
}

// TemplateService manages uploaded templates. An empty owner grants access
// to every customer's templates; otherwise only the owner's are visible.
type TemplateService interface {
	// Upload validates and stores a DOCX, then saves its metadata. The stored
	// object is deleted again if the metadata cannot be saved.
	Upload(ctx context.Context, owner string, r io.Reader, fileName string) (*model.Template, error)
	List(ctx context.Context, owner string, limit, offset int) (*TemplateListResult, error)
	Get(ctx context.Context, owner, id string) (*model.Template, error)
	Download(ctx context.Context, owner, id string) (io.ReadCloser, *model.Template, error)
	Delete(ctx context.Context, owner, id string) error

	// DetectFields rescans the template and replaces its fields and anchors.
	DetectFields(ctx context.Context, owner, id string) (*Detection, error)
	Fields(ctx context.Context, owner, id string) (*Detection, error)
}

type templateService struct {
	store    storage.Storage
	repo     repository.TemplateRepository
	maxBytes int64
}

func NewTemplateService(store storage.Storage, repo repository.TemplateRepository, maxBytes int64) TemplateService {
	return &templateService{store: store, repo: repo, maxBytes: maxBytes}
}

func (s *templateService) Upload(ctx context.Context, owner string, r io.Reader, fileName string) (*model.Template, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if owner == "" {
		return nil, ErrIDRequired
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".docx") {
		return nil, ErrInvalidFileType
	}

	b, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(b)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	if _, err := docx.Open(b); err != nil {
		return nil, ErrInvalidDocument
	}

	id := uuid.NewString()
	key := storage.TemplateKey(owner, id)
	sum := sha256.Sum256(b)
	objInfo, err := s.store.Put(ctx, key, bytes.NewReader(b), storage.PutObjectOptions{
		Size:        int64(len(b)),
		ContentType: docxMime,
		Metadata:    map[string]string{"original-filename": filepath.Base(fileName)},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	now := time.Now().UTC()
	stored, err := s.repo.Create(ctx, &model.Template{
		ID:         id,
		CustomerID: owner,
		FileName:   filepath.Base(fileName),
		StorageKey: objInfo.Key,
		MimeType:   docxMime,
		SizeBytes:  int64(len(b)),
		Sha256:     hex.EncodeToString(sum[:]),
		Status:     model.TemplateUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *templateService) List(ctx context.Context, owner string, limit, offset int) (*TemplateListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.repo.ListByCustomer(ctx, owner, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &TemplateListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *templateService) Get(ctx context.Context, owner, id string) (*model.Template, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrTemplateNotFound)
	}
	if owner != "" && t.CustomerID != owner {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *templateService) Download(ctx context.Context, owner, id string) (io.ReadCloser, *model.Template, error) {
	t, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, t.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read template: %w", err)
	}
	return rc, t, nil
}

// Delete removes the stored document first so a failure keeps the row that references it.
func (s *templateService) Delete(ctx context.Context, owner, id string) error {
	t, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, t.StorageKey); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.repo.Delete(ctx, id)
}

func (s *templateService) DetectFields(ctx context.Context, owner, id string) (*Detection, error) {
	t, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	b, err := storage.ReadAll(ctx, s.store, t.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	doc, err := docx.Open(b)
	if err != nil {
		return nil, ErrInvalidDocument
	}

	res := docx.Scan(doc)
	det := &Detection{
		Fields:  make([]model.TemplateField, 0, len(res.Fields)),
		Anchors: make([]model.SignatureAnchor, 0, res.AnchorCount),
	}
	for _, f := range res.Fields {
		det.Fields = append(det.Fields, model.TemplateField{
			ID:           uuid.NewString(),
			TemplateID:   id,
			Key:          f.Key,
			Label:        f.Label,
			Type:         "text",
			Order:        f.Order,
			DetectedFrom: "contentControl",
		})
	}
	for i := 1; i <= res.AnchorCount; i++ {
		det.Anchors = append(det.Anchors, model.SignatureAnchor{
			ID:         uuid.NewString(),
			TemplateID: id,
			Tag:        model.SignTag,
			Order:      i,
		})
	}

	if err := s.repo.ReplaceDetection(ctx, id, det.Fields, det.Anchors); err != nil {
		return nil, fmt.Errorf("save detection: %w", err)
	}
	return det, nil
}

func (s *templateService) Fields(ctx context.Context, owner, id string) (*Detection, error) {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return nil, err
	}
	fields, err := s.repo.ListFields(ctx, id)
	if err != nil {
		return nil, err
	}
	anchors, err := s.repo.ListAnchors(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detection{Fields: fields, Anchors: anchors}, nil
}
