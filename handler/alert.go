package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractwatch/model"
	"github.com/AnTengye/contractwatch/service"
)

type AlertHandler struct {
	store *service.SessionStore
	now   func() time.Time
}

func NewAlertHandler(store *service.SessionStore) *AlertHandler {
	return &AlertHandler{store: store, now: time.Now}
}

type alertRequest struct {
	Type     string     `json:"type"`
	Message  string     `json:"message"`
	Severity string     `json:"severity"`
	DueDate  *time.Time `json:"dueDate"`
}

func bindAlert(c *gin.Context) (model.Alert, bool) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return model.Alert{}, false
	}
	if req.Type == "" {
		req.Type = model.AlertCustom
	}
	alert := model.Alert{
		Type:     req.Type,
		Message:  req.Message,
		Severity: req.Severity,
		DueDate:  req.DueDate,
	}
	if !model.ValidAlert(&alert) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Alert needs a known type, a known severity and a message"})
		return model.Alert{}, false
	}
	return alert, true
}

// List raises any due expiration alerts, then returns the filtered feed
func (h *AlertHandler) List(c *gin.Context) {
	var filter service.AlertFilter

	if severity := c.Query("severity"); severity != "" {
		switch severity {
		case model.SeverityLow, model.SeverityMedium, model.SeverityHigh:
			filter.Severity = severity
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown severity " + severity})
			return
		}
	}
	if ack := c.Query("acknowledged"); ack != "" {
		v, err := strconv.ParseBool(ack)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "acknowledged must be true or false"})
			return
		}
		filter.Acknowledged = &v
	}

	h.store.GenerateExpirationAlerts(h.now())
	c.JSON(http.StatusOK, gin.H{"alerts": h.store.AlertFeed(filter)})
}

// Create stores a system alert that belongs to no contract
func (h *AlertHandler) Create(c *gin.Context) {
	alert, ok := bindAlert(c)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, h.store.AddAlert(alert))
}

// Acknowledge marks an alert as seen
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	alert, err := h.store.AcknowledgeAlert(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}
