package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "product-wizard-service/common/errors"
	"product-wizard-service/controllers"
	"product-wizard-service/models"
	"product-wizard-service/routes"
	"product-wizard-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRegistryService struct {
	pending    []models.RegistryContribution
	total      int64
	page       int
	limit      int
	setErr     error
	lastStatus models.ContributionStatus
	byCode     map[string]models.RegistryContribution
}

func (f *fakeRegistryService) Contribute(context.Context, *models.Product, string) error {
	return nil
}

func (f *fakeRegistryService) ListPending(_ context.Context, page, limit int) ([]models.RegistryContribution, int64, error) {
	f.page, f.limit = page, limit
	return f.pending, f.total, nil
}

func (f *fakeRegistryService) SetStatus(_ context.Context, _ uuid.UUID, status models.ContributionStatus) error {
	f.lastStatus = status
	return f.setErr
}

func (f *fakeRegistryService) Latest(_ context.Context, code string) (*models.RegistryContribution, error) {
	if c, ok := f.byCode[code]; ok {
		return &c, nil
	}
	return nil, services.ErrContributionNotFound
}

func newRegistryRouter(svc services.RegistryService) *gin.Engine {
	manager := services.NewSessionManager(services.SessionDeps{Creator: &stubCreator{}}, 0, zap.NewNop())
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	routes.RegisterWizardRoutes(r, nil,
		controllers.NewWizardController(manager, nil),
		controllers.NewRegistryController(svc), nil)
	return r
}

func adminRequest(method, path string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, "/admin/product-wizard/registry/contributions"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-User-Role", "admin")
	return req
}

func TestListPendingContributions(t *testing.T) {
	svc := &fakeRegistryService{
		pending: []models.RegistryContribution{{IdentifierCode: "1"}, {IdentifierCode: "2"}},
		total:   45,
	}
	r := newRegistryRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodGet, "?page=2&limit=20", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Contributions []models.RegistryContribution `json:"contributions"`
		Meta          struct {
			Page       int   `json:"page"`
			Limit      int   `json:"limit"`
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasMore    bool  `json:"has_more"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Contributions, 2)
	assert.Equal(t, 2, body.Meta.Page)
	assert.Equal(t, int64(3), body.Meta.TotalPages)
	assert.True(t, body.Meta.HasMore)
}

func TestListPendingContributions_PaginationBounds(t *testing.T) {
	svc := &fakeRegistryService{}
	r := newRegistryRouter(svc)

	r.ServeHTTP(httptest.NewRecorder(), adminRequest(http.MethodGet, "?page=-3&limit=5000", nil))
	assert.Equal(t, 1, svc.page)
	assert.Equal(t, 100, svc.limit)

	r.ServeHTTP(httptest.NewRecorder(), adminRequest(http.MethodGet, "?limit=abc", nil))
	assert.Equal(t, 20, svc.limit)
}

func TestSetContributionStatus(t *testing.T) {
	svc := &fakeRegistryService{}
	r := newRegistryRouter(svc)
	id := uuid.NewString()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodPatch, "/"+id, map[string]string{"status": "verified"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ContributionVerified, svc.lastStatus)
	assert.JSONEq(t, `{"id":"`+id+`","status":"verified"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodPatch, "/"+id, map[string]string{"status": "pending_verification"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodPatch, "/not-a-uuid", map[string]string{"status": "verified"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.setErr = services.ErrContributionNotFound
	w = httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodPatch, "/"+id, map[string]string{"status": "rejected"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetContributionByCode(t *testing.T) {
	svc := &fakeRegistryService{byCode: map[string]models.RegistryContribution{
		"8901234": {IdentifierCode: "8901234", Status: models.ContributionPending},
	}}
	r := newRegistryRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodGet, "/by-code/8901234", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got models.RegistryContribution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "8901234", got.IdentifierCode)
	assert.Equal(t, models.ContributionPending, got.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodGet, "/by-code/0000", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
