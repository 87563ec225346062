package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/allocation"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/engine"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/events"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/forecast"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/journal"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/registry"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/triage"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/vitals"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/ws"
)

// actorHeader carries the caller-supplied opaque identity. It is threaded
// into the journal, never interpreted.
const actorHeader = "X-Actor-ID"

type Handler struct {
	engine      *engine.Engine
	broadcaster *events.Broadcaster
}

func NewHandler(e *engine.Engine, b *events.Broadcaster) *Handler {
	return &Handler{
		engine:      e,
		broadcaster: b,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/ws", ws.Serve(h.broadcaster))

	api := r.Group("/api")
	api.POST("/patients", h.intake)
	api.POST("/patients/:id/classify", h.classify)
	api.PUT("/patients/:id/vitals", h.updateVitals)
	api.DELETE("/patients/:id", h.admit)
	api.GET("/queue", h.queue)
	api.GET("/forecast/summary", h.forecastSummary)
	api.POST("/forecast/refresh", h.refreshForecast)
	api.POST("/allocation/run", h.runAllocation)
	api.GET("/events", h.listEvents)
	api.GET("/facility", h.facility)
	api.PUT("/facility/capacity", h.updateCapacity)
}

func (h *Handler) intake(c *gin.Context) {
	var draft engine.IntakeDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p, err := h.engine.Intake(c.Request.Context(), c.GetHeader(actorHeader), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) classify(c *gin.Context) {
	p, err := h.engine.Classify(c.Request.Context(), c.GetHeader(actorHeader), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) updateVitals(c *gin.Context) {
	var body struct {
		Vitals   models.Vitals   `json:"vitals"`
		Symptoms models.Symptoms `json:"symptoms"`
		Notes    string          `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p, err := h.engine.UpdateVitals(c.Request.Context(), c.GetHeader(actorHeader), c.Param("id"), body.Vitals, body.Symptoms, body.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) admit(c *gin.Context) {
	if err := h.engine.Admit(c.Request.Context(), c.GetHeader(actorHeader), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "admitted"})
}

func (h *Handler) queue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"patients": h.engine.Queue()})
}

func (h *Handler) forecastSummary(c *gin.Context) {
	s, err := h.engine.ForecastSummary()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) refreshForecast(c *gin.Context) {
	s, err := h.engine.RefreshForecast(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) runAllocation(c *gin.Context) {
	assignments, err := h.engine.RunAllocation(c.Request.Context(), c.GetHeader(actorHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

func (h *Handler) listEvents(c *gin.Context) {
	filter := journal.Filter{
		Limit: 50, // Default to 50 events if limit param not supplied
	}

	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	if pid := c.Query("patient_id"); pid != "" {
		filter.PatientID = pid
	}
	if k := c.Query("kind"); k != "" {
		filter.Kind = models.EventKind(k)
	}

	evts, err := h.engine.Events(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}

func (h *Handler) facility(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Facility())
}

func (h *Handler) updateCapacity(c *gin.Context) {
	var body struct {
		TotalBeds    int     `json:"total_beds"`
		ICUBeds      int     `json:"icu_beds"`
		Ventilators  int     `json:"ventilators"`
		OxygenSupply float64 `json:"oxygen_supply"`
		StaffCount   int     `json:"staff_count"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	f := h.engine.UpdateCapacity(body.TotalBeds, body.ICUBeds, body.Ventilators, body.OxygenSupply, body.StaffCount)
	c.JSON(http.StatusOK, f)
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{
		"status":           "ok",
		"active_patients":  h.engine.QueueDepth(),
		"feed_subscribers": h.broadcaster.SubscriberCount(),
	}
	if at := h.engine.ForecastFetchedAt(); !at.IsZero() {
		resp["forecast_fetched_at"] = at
	}
	c.JSON(http.StatusOK, resp)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, vitals.ErrInvalidVitals):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, triage.ErrOracleUnavailable),
		errors.Is(err, forecast.ErrForecastUnavailable),
		errors.Is(err, allocation.ErrAllocationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
