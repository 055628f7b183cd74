package mocks

import (
	"context"

	"docsign/internal/audit"
	"docsign/internal/model"
	"docsign/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockInstanceService struct {
	mock.Mock
}

var _ service.InstanceService = (*MockInstanceService)(nil)

func (m *MockInstanceService) Fill(ctx context.Context, owner, templateID string, req service.FillRequest, fp audit.Fingerprint) (*service.FillResult, error) {
	args := m.Called(ctx, owner, templateID, req, fp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FillResult), args.Error(1)
}

func (m *MockInstanceService) Get(ctx context.Context, owner, id string) (*service.InstanceView, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InstanceView), args.Error(1)
}

func (m *MockInstanceService) Reissue(ctx context.Context, owner, id string, r service.Recipient, fp audit.Fingerprint) (*service.IssuedInvite, error) {
	args := m.Called(ctx, owner, id, r, fp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IssuedInvite), args.Error(1)
}

func (m *MockInstanceService) Revoke(ctx context.Context, owner, id string, fp audit.Fingerprint) ([]string, error) {
	args := m.Called(ctx, owner, id, fp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockInstanceService) AuditTrail(ctx context.Context, owner, id string) ([]model.AuditEvent, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEvent), args.Error(1)
}

func (m *MockInstanceService) AuditWorkbook(ctx context.Context, owner, id string) ([]byte, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
