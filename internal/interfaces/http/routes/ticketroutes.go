package routes

import (
	"github.com/gin-gonic/gin"

	tickethandlers "github.com/orris-inc/triage/internal/interfaces/http/handlers/ticket"
)

type TicketRouteConfig struct {
	TicketHandler *tickethandlers.TicketHandler
	StreamHandler *tickethandlers.StreamHandler
}

func SetupTicketRoutes(engine *gin.Engine, config *TicketRouteConfig) {
	tickets := engine.Group("/tickets")
	{
		tickets.POST("", config.TicketHandler.CreateTicket)
		tickets.GET("", config.TicketHandler.ListTickets)
		tickets.GET("/:id", config.TicketHandler.GetTicket)
	}

	engine.GET("/ws/tickets/:id", config.StreamHandler.TicketWS)
}
