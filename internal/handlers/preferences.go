package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	errGetPreferences  = "failed to load preferences"
	errSavePreferences = "failed to save preferences"
)

// preferencesRequest replaces both notification switches.
type preferencesRequest struct {
	SoundEnabled         *bool `json:"sound_enabled" binding:"required"`
	NotificationsEnabled *bool `json:"notifications_enabled" binding:"required"`
}

// @Summary      Get notification preferences
// @Tags         preferences
// @Produce      json
// @Success      200  {object}  models.Preferences
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/preferences [get]
// @Security     BearerAuth
func (h *Handler) getPreferences(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	p, err := h.services.Preferences.Get(c.Request.Context(), account)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetPreferences, "preferences_get_failed", err,
			"account_id", account)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Update notification preferences
// @Description  Live sessions of the account pick up the change at once.
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Param        body  body      preferencesRequest  true  "Switches"
// @Success      200   {object}  models.Preferences
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/preferences [put]
// @Security     BearerAuth
func (h *Handler) putPreferences(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	var req preferencesRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	p, err := h.services.Preferences.Update(c.Request.Context(), account, *req.SoundEnabled, *req.NotificationsEnabled)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errSavePreferences, "preferences_save_failed", err,
			"account_id", account)
		return
	}
	c.JSON(http.StatusOK, p)
}
