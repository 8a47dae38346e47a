package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/service"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/response"
)

// SettingsHandler exposes school-wide settings endpoints.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// List godoc
// @Summary List settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Get godoc
// @Summary Get setting by key
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// Upsert godoc
// @Summary Create or update a setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string false "Setting key"
// @Param payload body service.UpsertSettingRequest true "Setting payload"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [put]
func (h *SettingsHandler) Upsert(c *gin.Context) {
	var req service.UpsertSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if key := c.Param("key"); key != "" {
		req.Key = key
	}
	setting, err := h.settings.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}
