package mocks

import (
	"context"
	"io"

	"docsign/internal/audit"
	"docsign/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockSignService struct {
	mock.Mock
}

var _ service.SignService = (*MockSignService)(nil)

func (m *MockSignService) Bootstrap(ctx context.Context, token string, fp audit.Fingerprint) (*service.BootstrapView, error) {
	args := m.Called(ctx, token, fp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BootstrapView), args.Error(1)
}

func (m *MockSignService) VerifyOtp(ctx context.Context, token, code string, fp audit.Fingerprint) (string, error) {
	args := m.Called(ctx, token, code, fp)
	return args.String(0), args.Error(1)
}

func (m *MockSignService) OpenPdf(ctx context.Context, token, grantID string) (io.ReadCloser, error) {
	args := m.Called(ctx, token, grantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockSignService) Submit(ctx context.Context, token, grantID string, sub service.Submission, fp audit.Fingerprint) (*service.SubmitResult, error) {
	args := m.Called(ctx, token, grantID, sub, fp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SubmitResult), args.Error(1)
}
