package controllers

import (
	"net/http"
	"strconv"

	apperrors "product-wizard-service/common/errors"
	"product-wizard-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegistryController lets admins review contributed registry codes.
type RegistryController struct {
	registry services.RegistryService
}

func NewRegistryController(registry services.RegistryService) *RegistryController {
	return &RegistryController{registry: registry}
}

// ListPending handles GET /registry/contributions.
func (rc *RegistryController) ListPending(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	items, total, err := rc.registry.ListPending(c.Request.Context(), page, limit)
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}

	totalPages := int64(0)
	if limit > 0 {
		totalPages = (total + int64(limit) - 1) / int64(limit)
	}

	c.JSON(http.StatusOK, gin.H{
		"contributions": items,
		"meta": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
			"has_more":    total > int64(page*limit),
		},
	})
}

// GetByCode handles GET /registry/contributions/by-code/:code.
func (rc *RegistryController) GetByCode(c *gin.Context) {
	contribution, err := rc.registry.Latest(c.Request.Context(), c.Param("code"))
	if err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, contribution)
}

// SetStatus handles PATCH /registry/contributions/:id.
func (rc *RegistryController) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails("id must be a UUID"))
		return
	}
	var req ContributionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	if err := rc.registry.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		apperrors.Abort(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func parsePaginationParams(c *gin.Context) (int, int) {
	const (
		maxLimit     = 100
		defaultLimit = 20
	)
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
