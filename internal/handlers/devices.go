package handlers

import (
	"context"
	"errors"
	"net/http"

	"alert_console/internal/control"
	"alert_console/internal/models"
	"alert_console/internal/service"

	"github.com/gin-gonic/gin"
)

const errDeviceBackend = "device backend request failed"

type controlsRequest struct {
	Values map[string]any `json:"values" binding:"required"`
}

type shareRequest struct {
	Permission string `json:"permission" example:"read"`
}

// backendError maps device backend failures onto HTTP statuses.
func (h *Handler) backendError(c *gin.Context, logKey string, err error) {
	var apiErr *control.APIError
	switch {
	case errors.Is(err, service.ErrEmptyControls), errors.Is(err, service.ErrInvalidPermission),
		errors.Is(err, service.ErrInvalidLink):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, control.ErrBackendDisabled), errors.Is(err, control.ErrBackendUnavailable):
		h.logAndJSONError(c, http.StatusServiceUnavailable, err.Error(), logKey, err, "device_id", c.Param("id"))
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errDeviceBackend, logKey, err, "device_id", c.Param("id"))
	}
}

// @Summary      Get device controls
// @Description  Optimistic view: values not yet confirmed by the backend are marked pending.
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.ControlState
// @Router       /api/v1/devices/{id}/controls [get]
// @Security     BearerAuth
func (h *Handler) getControls(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.DeviceControl.Controls(c.Param("id")))
}

// @Summary      Update device controls
// @Description  Applied locally at once and pushed after a short quiet window; a failed push reverts.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path      string           true  "Device id"
// @Param        body  body      controlsRequest  true  "Values"
// @Success      202   {object}  models.ControlState
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/devices/{id}/controls [put]
// @Security     BearerAuth
func (h *Handler) putControls(c *gin.Context) {
	var req controlsRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	st, err := h.services.DeviceControl.SetControls(c.Param("id"), req.Values)
	if err != nil {
		h.backendError(c, "device_controls_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, st)
}

// @Summary      Toggle power
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.PowerState
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/devices/{id}/power [post]
// @Security     BearerAuth
func (h *Handler) togglePower(c *gin.Context) {
	st, err := h.services.DeviceControl.TogglePower(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.backendError(c, "device_power_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Door status
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.DoorStatus
// @Router       /api/v1/devices/{id}/door [get]
// @Security     BearerAuth
func (h *Handler) doorStatus(c *gin.Context) {
	h.doorCall(c, "device_door_status_failed", h.services.DeviceControl.DoorStatus)
}

// @Summary      Toggle door
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.DoorStatus
// @Router       /api/v1/devices/{id}/door [post]
// @Security     BearerAuth
func (h *Handler) toggleDoor(c *gin.Context) {
	h.doorCall(c, "device_door_toggle_failed", h.services.DeviceControl.ToggleDoor)
}

// @Summary      Lock door
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.DoorStatus
// @Router       /api/v1/devices/{id}/lock [post]
// @Security     BearerAuth
func (h *Handler) lockDoor(c *gin.Context) {
	h.doorCall(c, "device_lock_failed", h.services.DeviceControl.Lock)
}

// @Summary      Unlock door
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.DoorStatus
// @Router       /api/v1/devices/{id}/unlock [post]
// @Security     BearerAuth
func (h *Handler) unlockDoor(c *gin.Context) {
	h.doorCall(c, "device_unlock_failed", h.services.DeviceControl.Unlock)
}

func (h *Handler) doorCall(c *gin.Context, logKey string,
	call func(ctx context.Context, deviceID string) (models.DoorStatus, error)) {
	st, err := call(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.backendError(c, logKey, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Share a device
// @Description  Creates a share ticket another user can redeem. Permission defaults to read.
// @Tags         sharing
// @Accept       json
// @Produce      json
// @Param        id    path      string        true  "Device id"
// @Param        body  body      shareRequest  false "Permission"
// @Success      201   {object}  models.ShareTicket
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/devices/{id}/share [post]
// @Security     BearerAuth
func (h *Handler) shareDevice(c *gin.Context) {
	var req shareRequest
	if c.Request.ContentLength != 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	ticket, err := h.services.DeviceControl.Share(c.Request.Context(), c.Param("id"), req.Permission)
	if err != nil {
		h.backendError(c, "device_share_failed", err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// @Summary      List users a device is shared with
// @Tags         sharing
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {array}   models.SharedUser
// @Router       /api/v1/devices/{id}/shared-users [get]
// @Security     BearerAuth
func (h *Handler) sharedUsers(c *gin.Context) {
	users, err := h.services.DeviceControl.SharedUsers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.backendError(c, "device_shared_users_failed", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary      Revoke a share
// @Tags         sharing
// @Param        id    path  string  true  "Device id"
// @Param        user  path  string  true  "User id"
// @Success      204
// @Router       /api/v1/devices/{id}/shared-users/{user} [delete]
// @Security     BearerAuth
func (h *Handler) removeSharedUser(c *gin.Context) {
	if err := h.services.DeviceControl.RemoveSharedUser(c.Request.Context(), c.Param("id"), c.Param("user")); err != nil {
		h.backendError(c, "device_unshare_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      List device links
// @Tags         links
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {array}   models.DeviceLink
// @Router       /api/v1/devices/{id}/links [get]
// @Security     BearerAuth
func (h *Handler) listLinks(c *gin.Context) {
	links, err := h.services.DeviceControl.Links(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.backendError(c, "device_links_failed", err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// @Summary      Link two devices
// @Description  When the trigger fires on this device the action runs on the target.
// @Tags         links
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Source device id"
// @Param        body  body      models.DeviceLink  true  "Link"
// @Success      201   {object}  models.DeviceLink
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/devices/{id}/links [post]
// @Security     BearerAuth
func (h *Handler) createLink(c *gin.Context) {
	var link models.DeviceLink
	if ok := h.bindJSONOrBadRequest(c, &link); !ok {
		return
	}
	out, err := h.services.DeviceControl.CreateLink(c.Request.Context(), c.Param("id"), link)
	if err != nil {
		h.backendError(c, "device_link_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// @Summary      Remove a device link
// @Tags         links
// @Param        id    path  string  true  "Device id"
// @Param        link  path  string  true  "Link id"
// @Success      204
// @Router       /api/v1/devices/{id}/links/{link} [delete]
// @Security     BearerAuth
func (h *Handler) deleteLink(c *gin.Context) {
	if err := h.services.DeviceControl.DeleteLink(c.Request.Context(), c.Param("id"), c.Param("link")); err != nil {
		h.backendError(c, "device_link_delete_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
