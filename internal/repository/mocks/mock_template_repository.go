package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsign/internal/model"
	"docsign/internal/repository"
)

type MockTemplateRepository struct {
	mock.Mock
}

var _ repository.TemplateRepository = (*MockTemplateRepository)(nil)

func (m *MockTemplateRepository) Create(ctx context.Context, t *model.Template) (*model.Template, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateRepository) FindByID(ctx context.Context, id string) (*model.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateRepository) ListByCustomer(ctx context.Context, customerID string, pq repository.PageQuery) (*repository.PageResult[model.Template], error) {
	args := m.Called(ctx, customerID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Template]), args.Error(1)
}

func (m *MockTemplateRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTemplateRepository) ReplaceDetection(ctx context.Context, templateID string, fields []model.TemplateField, anchors []model.SignatureAnchor) error {
	args := m.Called(ctx, templateID, fields, anchors)
	return args.Error(0)
}

func (m *MockTemplateRepository) ListFields(ctx context.Context, templateID string) ([]model.TemplateField, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TemplateField), args.Error(1)
}

func (m *MockTemplateRepository) ListAnchors(ctx context.Context, templateID string) ([]model.SignatureAnchor, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SignatureAnchor), args.Error(1)
}
