package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docsign/internal/audit"
	"docsign/internal/config"
	"docsign/internal/http/middleware"
	"docsign/internal/model"
	"docsign/internal/seal"
	"docsign/internal/service"
	serviceMocks "docsign/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func asPrincipal(p *middleware.Principal) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.PrincipalLocalKey, p)
		return c.Next()
	}
}

var middlewareAuthConfig = config.AuthConfig{JWTSecret: "test-secret"}

var customer = &middleware.Principal{Subject: "u1", Role: middleware.RoleCustomer, CustomerID: "cust-1"}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListTemplates(t *testing.T) {
	mockSvc := new(serviceMocks.MockTemplateService)
	app := fiber.New()
	app.Get("/templates", asPrincipal(customer), ListTemplates(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &service.TemplateListResult{
			Items: []model.Template{{ID: uuid.New().String(), FileName: "nda.docx"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, "cust-1", 10, 0).Return(expected, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/templates?limit=10&offset=0", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.TemplateListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/templates?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, "cust-1", 10, 0).Return(nil, errors.New("service error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/templates", nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestUploadTemplate(t *testing.T) {
	mockSvc := new(serviceMocks.MockTemplateService)
	app := fiber.New()
	app.Post("/templates", asPrincipal(customer), UploadTemplate(mockSvc))

	multipartBody := func(name string, data []byte) (*bytes.Buffer, string) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, _ := writer.CreateFormFile("file", name)
		part.Write(data)
		writer.Close()
		return body, writer.FormDataContentType()
	}

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody("nda.docx", []byte("PK..."))
		expected := &model.Template{ID: uuid.New().String(), FileName: "nda.docx"}
		mockSvc.On("Upload", mock.Anything, "cust-1", mock.Anything, "nda.docx").Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/templates", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var result model.Template
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expected.ID, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/templates", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("wrong file type", func(t *testing.T) {
		body, ct := multipartBody("nda.pdf", []byte("%PDF"))
		mockSvc.On("Upload", mock.Anything, "cust-1", mock.Anything, "nda.pdf").Return(nil, service.ErrInvalidFileType).Once()

		req := httptest.NewRequest(http.MethodPost, "/templates", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "InvalidFileType", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetTemplate(t *testing.T) {
	mockSvc := new(serviceMocks.MockTemplateService)
	app := fiber.New()
	app.Get("/templates/:id", asPrincipal(customer), GetTemplate(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, "cust-1", id).Return(&model.Template{ID: id}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/templates/"+id, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result model.Template
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, "cust-1", id).Return(nil, service.ErrTemplateNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/templates/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("forbidden", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, "cust-1", id).Return(nil, service.ErrForbidden).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/templates/"+id, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/templates/invalid-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}

func TestDeleteTemplate_Admin(t *testing.T) {
	mockSvc := new(serviceMocks.MockTemplateService)
	app := fiber.New()
	app.Delete("/templates/:id", asPrincipal(&middleware.Principal{Role: middleware.RoleAdmin}), DeleteTemplate(mockSvc))

	id := uuid.New().String()
	mockSvc.On("Delete", mock.Anything, "", id).Return(nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/templates/"+id, nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	mockSvc.AssertExpectations(t)
}

func TestFillTemplate_MissingReplacements(t *testing.T) {
	mockSvc := new(serviceMocks.MockInstanceService)
	app := fiber.New()
	app.Post("/templates/:id/fill", asPrincipal(customer), FillTemplate(mockSvc))

	id := uuid.New().String()
	mockSvc.On("Fill", mock.Anything, "cust-1", id, mock.MatchedBy(func(r service.FillRequest) bool {
		return r.Values["ClientName"] == "" && r.Recipient.Email == "jane@example.com"
	}), mock.Anything).Return(nil, service.ErrMissingReplacements.WithDetails(map[string][]string{
		"missing": {"ClientName"},
	})).Once()

	req := httptest.NewRequest(http.MethodPost, "/templates/"+id+"/fill",
		strings.NewReader(`{"values":{},"recipient":{"email":"jane@example.com"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.RequestIDHeader, "rid-1")
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "MissingReplacements", body.Error.Code)
	assert.Equal(t, []string{"ClientName"}, body.Error.Details["missing"])
	mockSvc.AssertExpectations(t)
}

func TestFillTemplate_InviteNotIssued(t *testing.T) {
	mockSvc := new(serviceMocks.MockInstanceService)
	app := fiber.New()
	app.Post("/templates/:id/fill", asPrincipal(customer), FillTemplate(mockSvc))

	id := uuid.New().String()
	mockSvc.On("Fill", mock.Anything, "cust-1", id, mock.Anything, mock.Anything).
		Return(nil, service.ErrInviteNotIssued.WithDetails(map[string][]string{"instanceId": {"inst-9"}})).Once()

	req := httptest.NewRequest(http.MethodPost, "/templates/"+id+"/fill",
		strings.NewReader(`{"values":{"ClientName":"Jane"},"recipient":{"email":"jane@example.com"}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "InviteNotIssued", body.Error.Code)
	assert.Equal(t, []string{"inst-9"}, body.Error.Details["instanceId"])
	mockSvc.AssertExpectations(t)
}

func TestExportAuditTrail(t *testing.T) {
	mockSvc := new(serviceMocks.MockInstanceService)
	app := fiber.New()
	app.Get("/instances/:id/audit.xlsx", asPrincipal(customer), ExportAuditTrail(mockSvc))

	id := uuid.New().String()
	mockSvc.On("AuditWorkbook", mock.Anything, "cust-1", id).Return([]byte("xlsx-bytes"), nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/instances/"+id+"/audit.xlsx", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "audit-"+id+".xlsx")
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "xlsx-bytes", string(b))
	mockSvc.AssertExpectations(t)
}

func TestSignFlowHandlers(t *testing.T) {
	mockSvc := new(serviceMocks.MockSignService)
	app := fiber.New()
	app.Get("/api/sign/:token/bootstrap", SignBootstrap(mockSvc))
	app.Post("/api/sign/:token/verify-otp", SignVerifyOtp(mockSvc, 20*time.Minute))
	app.Get("/api/sign/:token/pdf", SignPdf(mockSvc))
	app.Post("/api/sign/:token/submit", SignSubmit(mockSvc))

	t.Run("bootstrap records the caller", func(t *testing.T) {
		mockSvc.On("Bootstrap", mock.Anything, "tok", mock.MatchedBy(func(fp audit.Fingerprint) bool {
			return fp.IP == "198.51.100.4" && fp.UserAgent == "ua" && fp.GeoCountry == "NL"
		})).Return(&service.BootstrapView{SignerName: "Jane", Status: model.InviteOpened}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/sign/tok/bootstrap", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
		req.Header.Set("User-Agent", "ua")
		req.Header.Set("CF-IPCountry", "NL")
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("verify sets the grant cookie", func(t *testing.T) {
		mockSvc.On("VerifyOtp", mock.Anything, "tok", "123456", mock.Anything).Return("grant-1", nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/sign/tok/verify-otp", strings.NewReader(`{"otp":"123456"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var found *http.Cookie
		for _, ck := range resp.Cookies() {
			if ck.Name == "sign_tok_ok" {
				found = ck
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "grant-1", found.Value)
		assert.True(t, found.HttpOnly)
	})

	t.Run("verify with wrong code", func(t *testing.T) {
		mockSvc.On("VerifyOtp", mock.Anything, "tok", "000000", mock.Anything).Return("", service.ErrOtpInvalid).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/sign/tok/verify-otp", strings.NewReader(`{"otp":"000000"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "OtpInvalid", decodeError(t, resp).Error.Code)
	})

	t.Run("pdf reads the grant cookie", func(t *testing.T) {
		mockSvc.On("OpenPdf", mock.Anything, "tok", "grant-1").Return(io.NopCloser(strings.NewReader("%PDF-1.7")), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/sign/tok/pdf", nil)
		req.Header.Set("Cookie", "sign_tok_ok=grant-1")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "%PDF-1.7", string(b))
	})

	t.Run("submit while another submit runs", func(t *testing.T) {
		mockSvc.On("Submit", mock.Anything, "tok", "grant-1", mock.Anything, mock.Anything).Return(nil, service.ErrSubmissionInProgress).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/sign/tok/submit", strings.NewReader(`{"signatureImageBase64":"x","applyAllSlots":true}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cookie", "sign_tok_ok=grant-1")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("submit already signed", func(t *testing.T) {
		mockSvc.On("Submit", mock.Anything, "tok", "", mock.Anything, mock.Anything).Return(nil, service.ErrAlreadySigned).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/sign/tok/submit", strings.NewReader(`{"signatureImageBase64":"x","applyAllSlots":true}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "AlreadySigned", decodeError(t, resp).Error.Code)
	})

	t.Run("submit success", func(t *testing.T) {
		mockSvc.On("Submit", mock.Anything, "tok", "grant-1", mock.MatchedBy(func(s service.Submission) bool {
			return s.SlotKey == "default.1" && s.DrawName != nil && !*s.DrawName
		}), mock.Anything).Return(&service.SubmitResult{
			InstanceID: "inst-1", Status: model.InstanceCompleted, Targets: 1, Seal: seal.Result{Status: seal.Applied},
		}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/sign/tok/submit",
			strings.NewReader(`{"signatureImageBase64":"x","slotKey":"default.1","drawName":false}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cookie", "sign_tok_ok=grant-1")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var res service.SubmitResult
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, model.InstanceCompleted, res.Status)
	})

	mockSvc.AssertExpectations(t)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	RegisterRoutes(app, Routes{
		Auth:      middleware.Auth(middlewareAuthConfig),
		Templates: new(serviceMocks.MockTemplateService),
		Instances: new(serviceMocks.MockInstanceService),
		Sign:      new(serviceMocks.MockSignService),
	})

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("staff routes need a token", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/templates", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
	})
}
