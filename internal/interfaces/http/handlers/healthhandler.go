package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListenerCounter reports the number of connected ticket listeners.
type ListenerCounter interface {
	Count() int
}

// TicketCounter reports the number of stored tickets.
type TicketCounter interface {
	Count() int
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	llmConfigured bool
	listeners     ListenerCounter
	tickets       TicketCounter
}

func NewHealthHandler(llmConfigured bool, listeners ListenerCounter, tickets TicketCounter) *HealthHandler {
	return &HealthHandler{
		llmConfigured: llmConfigured,
		listeners:     listeners,
		tickets:       tickets,
	}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"llm_configured": h.llmConfigured,
		"listeners":      h.listeners.Count(),
		"tickets":        h.tickets.Count(),
	})
}
