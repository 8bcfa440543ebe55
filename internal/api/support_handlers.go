package api

import (
	"net/http"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/service"

	"github.com/gin-gonic/gin"
)

type TicketRequest struct {
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required"`
}

type TicketStatusRequest struct {
	Status models.SupportTicketStatus `json:"status" binding:"required"`
	Reply  string                     `json:"reply"`
}

type SupportHandler struct {
	support    service.SupportService
	settings   service.SettingService
	logService service.LogService
}

func NewSupportHandler(support service.SupportService, settings service.SettingService, logService service.LogService) *SupportHandler {
	return &SupportHandler{support: support, settings: settings, logService: logService}
}

// @Summary Open a support ticket
// @Tags Support
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ticket body TicketRequest true "Ticket"
// @Success 201 {object} models.SupportTicket
// @Router /tickets [post]
func (h *SupportHandler) CreateTicket(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	ticket, err := h.support.CreateTicket(c.Request.Context(), userID, req.Subject, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorUser, userID, "CreateTicket", "User opened support ticket", map[string]interface{}{"ticket_id": ticket.ID.Hex()})
	c.JSON(http.StatusCreated, ticket)
}

// @Summary List own tickets
// @Tags Support
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.SupportTicket
// @Router /tickets [get]
func (h *SupportHandler) GetUserTickets(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	tickets, err := h.support.GetTicketsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary List tickets
// @Description Lists all tickets, optionally filtered by status (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Ticket status"
// @Success 200 {array} models.SupportTicket
// @Router /admin/tickets [get]
func (h *SupportHandler) GetAllTickets(c *gin.Context) {
	status := models.SupportTicketStatus(c.Query("status"))
	tickets, err := h.support.GetTickets(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary Update ticket status
// @Description Moves a ticket through its workflow and optionally sets the admin reply
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param update body TicketStatusRequest true "New status"
// @Success 200 {object} models.SupportTicket
// @Failure 409 {object} map[string]string "Invalid transition"
// @Router /admin/tickets/{id} [put]
func (h *SupportHandler) UpdateTicketStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req TicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	ticket, err := h.support.UpdateStatus(c.Request.Context(), id, req.Status, req.Reply)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "UpdateTicket", "Admin updated support ticket", map[string]interface{}{
		"ticket_id": id.Hex(),
		"status":    string(req.Status),
	})
	c.JSON(http.StatusOK, ticket)
}

// @Summary Get platform settings
// @Tags Settings
// @Produce json
// @Success 200 {object} models.Setting
// @Router /settings [get]
func (h *SupportHandler) GetSettings(c *gin.Context) {
	setting, err := h.settings.GetSetting(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// @Summary Update platform settings
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param setting body models.Setting true "Settings"
// @Success 200 {object} models.Setting
// @Router /admin/settings [put]
func (h *SupportHandler) UpdateSettings(c *gin.Context) {
	var req models.Setting
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	setting, err := h.settings.UpdateSetting(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "UpdateSettings", "Admin updated settings", nil)
	c.JSON(http.StatusOK, setting)
}
