package controllers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	apperrors "product-wizard-service/common/errors"
	"product-wizard-service/common/logger"
	"product-wizard-service/middleware"
	"product-wizard-service/models"
	"product-wizard-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MediaPresigner hands out direct-upload slots.
type MediaPresigner interface {
	GeneratePresignedUpload(ctx context.Context, filename, contentType string, expiresSeconds int64) (*services.PresignedUpload, error)
}

// WizardController exposes wizard sessions over HTTP.
type WizardController struct {
	sessions  services.SessionManager
	presigner MediaPresigner
}

// NewWizardController creates a controller. presigner may be nil when no
// bucket is configured.
func NewWizardController(sessions services.SessionManager, presigner MediaPresigner) *WizardController {
	return &WizardController{sessions: sessions, presigner: presigner}
}

// session loads the caller's session or writes the error response.
func (wc *WizardController) session(c *gin.Context) (*services.Session, bool) {
	owner, err := middleware.GetUserID(c)
	if err != nil {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return nil, false
	}
	s, err := wc.sessions.Get(c.Param("id"), owner)
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return nil, false
	}
	return s, true
}

func respondSnapshot(c *gin.Context, status int, s *services.Session) {
	c.JSON(status, gin.H{"session": s.Snapshot()})
}

// StartSession handles POST /sessions.
func (wc *WizardController) StartSession(c *gin.Context) {
	owner, err := middleware.GetUserID(c)
	if err != nil {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	s, err := wc.sessions.Start(owner)
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusCreated, s)
}

// GetSession handles GET /sessions/:id.
func (wc *WizardController) GetSession(c *gin.Context) {
	s, ok := wc.session(c)
	if !ok {
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// CancelSession handles DELETE /sessions/:id.
func (wc *WizardController) CancelSession(c *gin.Context) {
	owner, err := middleware.GetUserID(c)
	if err != nil {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	if err := wc.sessions.Discard(c.Param("id"), owner); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// PatchDraft handles PATCH /sessions/:id/draft.
func (wc *WizardController) PatchDraft(c *gin.Context) {
	var patch models.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.Patch(patch); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// Advance handles POST /sessions/:id/advance.
func (wc *WizardController) Advance(c *gin.Context) {
	s, ok := wc.session(c)
	if !ok {
		return
	}
	fieldErrs, err := s.Advance()
	if errors.Is(err, services.ErrStepGateFailed) {
		apperrors.Abort(c, toAppError(err).WithDetails(fieldErrs))
		return
	}
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// Retreat handles POST /sessions/:id/retreat.
func (wc *WizardController) Retreat(c *gin.Context) {
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.Retreat(); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// JumpTo handles POST /sessions/:id/jump.
func (wc *WizardController) JumpTo(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	step, ok := models.ParseStep(req.Step)
	if !ok {
		apperrors.Abort(c, toAppError(services.ErrInvalidStep))
		return
	}
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.JumpTo(step); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// SkipToManual handles POST /sessions/:id/skip-to-manual.
func (wc *WizardController) SkipToManual(c *gin.Context) {
	var req SkipRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
			return
		}
	}
	target := models.StepBasics
	if req.Target != "" {
		step, ok := models.ParseStep(req.Target)
		if !ok {
			apperrors.Abort(c, toAppError(services.ErrInvalidStep))
			return
		}
		target = step
	}
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.SkipToManual(target); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// Lookup handles POST /sessions/:id/lookup. A miss or a registry outage
// is not an error for the client: the response routes it to manual entry.
func (wc *WizardController) Lookup(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	s, ok := wc.session(c)
	if !ok {
		return
	}

	res, err := s.Lookup(c.Request.Context(), req.Code)
	switch {
	case errors.Is(err, services.ErrStaleLookup),
		errors.Is(err, services.ErrSessionClosed),
		errors.Is(err, services.ErrSubmissionInProgress),
		errors.Is(err, services.ErrEmptyCode):
		apperrors.Abort(c, toAppError(err))
		return
	case err != nil:
		logger.Warn(c, "Registry lookup failed, routing to manual entry", zap.Error(err))
		c.JSON(http.StatusOK, LookupResponse{
			Result:      res,
			ManualEntry: true,
			Message:     "Registry lookup is unavailable, continue with manual entry",
			Session:     s.Snapshot(),
		})
		return
	}

	resp := LookupResponse{Result: res, ManualEntry: !res.Found, Session: s.Snapshot()}
	if !res.Found {
		resp.Message = "No registry match, continue with manual entry"
	}
	c.JSON(http.StatusOK, resp)
}

// AcceptCandidate handles POST /sessions/:id/candidate/accept.
func (wc *WizardController) AcceptCandidate(c *gin.Context) {
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.AcceptCandidate(); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// RejectCandidate handles POST /sessions/:id/candidate/reject.
func (wc *WizardController) RejectCandidate(c *gin.Context) {
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.RejectCandidate(); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// AddMedia handles POST /sessions/:id/media.
func (wc *WizardController) AddMedia(c *gin.Context) {
	var req MediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	ref := services.MediaRef{URL: req.URL, ContentType: req.ContentType, Filename: req.Filename}
	if req.URL == "" && req.Data != "" {
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails("data must be base64"))
			return
		}
		ref.Data = data
	}

	s, ok := wc.session(c)
	if !ok {
		return
	}
	url, err := s.AddMedia(c.Request.Context(), ref)
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url, "session": s.Snapshot()})
}

// RemoveMedia handles DELETE /sessions/:id/media/:index.
func (wc *WizardController) RemoveMedia(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails("index must be an integer"))
		return
	}
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.RemoveMedia(index); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// PresignMedia handles POST /sessions/:id/media/presign.
func (wc *WizardController) PresignMedia(c *gin.Context) {
	if wc.presigner == nil {
		apperrors.Abort(c, apperrors.ErrServiceUnavailable.WithDetails("media uploads are not configured"))
		return
	}
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	if _, ok := wc.session(c); !ok {
		return
	}
	upload, err := wc.presigner.GeneratePresignedUpload(c.Request.Context(), req.Filename, req.ContentType, req.ExpiresSeconds)
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, upload)
}

// UpsertVariantGroup handles PUT /sessions/:id/variant-groups.
func (wc *WizardController) UpsertVariantGroup(c *gin.Context) {
	var g models.VariantGroup
	if err := c.ShouldBindJSON(&g); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.UpsertVariantGroup(g); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// RemoveVariantGroup handles DELETE /sessions/:id/variant-groups/:name.
func (wc *WizardController) RemoveVariantGroup(c *gin.Context) {
	s, ok := wc.session(c)
	if !ok {
		return
	}
	if err := s.RemoveVariantGroup(c.Param("name")); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	respondSnapshot(c, http.StatusOK, s)
}

// Submit handles POST /sessions/:id/submit.
func (wc *WizardController) Submit(c *gin.Context) {
	s, ok := wc.session(c)
	if !ok {
		return
	}
	outcome, err := s.Submit(c.Request.Context())
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}

	status := http.StatusCreated
	switch {
	case outcome.State == models.SubmissionSucceeded:
		logger.Info(c, "Wizard submission succeeded", zap.String("product_id", outcome.Entity.ID))
	case outcome.Reason == models.FailureValidation:
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"outcome": outcome, "session": s.Snapshot()})
}
