package handlers

import (
	"errors"
	"net/http"
	"strings"

	"alert_console/internal/models"
	"alert_console/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errEmergencyType    = "emergency type is required"
	errPublishEmergency = "failed to publish emergency"
	errStartSimulation  = "failed to start simulation"
)

// simulationRequest starts a scripted scenario on a device.
type simulationRequest struct {
	Scenario     string `json:"scenario" binding:"required" example:"fire"`
	SerialNumber string `json:"serial_number,omitempty" example:"SN-001"`
	DeviceID     string `json:"device_id,omitempty"`
}

// @Summary      Evaluate a reading
// @Description  Stateless level and type for a sensor reading; touches no session.
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        body  body      models.SensorReading  true  "Reading"
// @Success      200   {object}  engine.Evaluation
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/evaluate [post]
// @Security     BearerAuth
func (h *Handler) evaluate(c *gin.Context) {
	var r models.SensorReading
	if ok := h.bindJSONOrBadRequest(c, &r); !ok {
		return
	}
	c.JSON(http.StatusOK, h.services.Ingest.Evaluate(r))
}

// @Summary      Push a sensor reading
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id         path   string                true   "Serial number"
// @Param        device_id  query  string                false  "Device id"
// @Param        body       body   models.SensorReading  true   "Reading"
// @Success      202   {object}  map[string]int  "delivered"
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/devices/{id}/readings [post]
// @Security     BearerAuth
func (h *Handler) postReading(c *gin.Context) {
	var r models.SensorReading
	if ok := h.bindJSONOrBadRequest(c, &r); !ok {
		return
	}
	n := h.services.Ingest.PublishReading(c.Param("id"), c.Query("device_id"), r)
	c.JSON(http.StatusAccepted, gin.H{"delivered": n})
}

// @Summary      Push a device alarm
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id         path   string              true   "Serial number"
// @Param        device_id  query  string              false  "Device id"
// @Param        body       body   models.DeviceAlarm  true   "Alarm"
// @Success      202   {object}  map[string]int  "delivered"
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/devices/{id}/alarms [post]
// @Security     BearerAuth
func (h *Handler) postAlarm(c *gin.Context) {
	var a models.DeviceAlarm
	if ok := h.bindJSONOrBadRequest(c, &a); !ok {
		return
	}
	n := h.services.Ingest.PublishAlarm(c.Param("id"), c.Query("device_id"), a)
	c.JSON(http.StatusAccepted, gin.H{"delivered": n})
}

// @Summary      Raise an account emergency
// @Description  Fans out to every session of the caller's account. An id is assigned when missing.
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        body  body      models.GlobalAlert  true  "Emergency"
// @Success      202   {object}  models.GlobalAlert
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/emergencies [post]
// @Security     BearerAuth
func (h *Handler) postEmergency(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	var g models.GlobalAlert
	if ok := h.bindJSONOrBadRequest(c, &g); !ok {
		return
	}
	if strings.TrimSpace(g.Type) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errEmergencyType})
		return
	}
	out, err := h.services.Ingest.PublishEmergency(c.Request.Context(), account, g)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errPublishEmergency, "emergency_publish_failed", err,
			"account_id", account)
		return
	}
	c.JSON(http.StatusAccepted, out)
}

// @Summary      Start a simulation
// @Tags         simulations
// @Accept       json
// @Produce      json
// @Param        body  body      simulationRequest  true  "Scenario"
// @Success      202   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/simulations [post]
// @Security     BearerAuth
func (h *Handler) startSimulation(c *gin.Context) {
	var req simulationRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	err := h.services.Simulator.Start(c.Request.Context(), service.SimulationParams{
		Scenario:     req.Scenario,
		SerialNumber: req.SerialNumber,
		DeviceID:     req.DeviceID,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "started", "scenario": strings.ToLower(req.Scenario)})
	case errors.Is(err, service.ErrUnknownScenario), errors.Is(err, service.ErrNoDevice):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSimulatorDisabled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errStartSimulation, "simulation_start_failed", err)
	}
}
