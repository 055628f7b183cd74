package mocks

import (
	"context"
	"io"

	"docsign/internal/model"
	"docsign/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockTemplateService struct {
	mock.Mock
}

var _ service.TemplateService = (*MockTemplateService)(nil)

func (m *MockTemplateService) Upload(ctx context.Context, owner string, r io.Reader, fileName string) (*model.Template, error) {
	args := m.Called(ctx, owner, r, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateService) List(ctx context.Context, owner string, limit, offset int) (*service.TemplateListResult, error) {
	args := m.Called(ctx, owner, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TemplateListResult), args.Error(1)
}

func (m *MockTemplateService) Get(ctx context.Context, owner, id string) (*model.Template, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateService) Download(ctx context.Context, owner, id string) (io.ReadCloser, *model.Template, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.Template), args.Error(2)
}

func (m *MockTemplateService) Delete(ctx context.Context, owner, id string) error {
	args := m.Called(ctx, owner, id)
	return args.Error(0)
}

func (m *MockTemplateService) DetectFields(ctx context.Context, owner, id string) (*service.Detection, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Detection), args.Error(1)
}

func (m *MockTemplateService) Fields(ctx context.Context, owner, id string) (*service.Detection, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Detection), args.Error(1)
}
