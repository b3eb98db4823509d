package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/diticoms/service-desk/internal/assistant"
	"github.com/diticoms/service-desk/internal/model"
	"github.com/diticoms/service-desk/internal/service"
	"github.com/gin-gonic/gin"
)

// Assistant is satisfied by *assistant.Assistant.
type Assistant interface {
	Diagnose(ctx context.Context, content string) ([]model.WorkItem, error)
	Ask(ctx context.Context, question string, tickets []model.Ticket) (assistant.Answer, error)
}

type AssistantHandler struct {
	svc service.DeskServicer
	ai  Assistant
}

func NewAssistantHandler(svc service.DeskServicer, ai Assistant) *AssistantHandler {
	return &AssistantHandler{svc: svc, ai: ai}
}

func (h *AssistantHandler) unavailable(c *gin.Context, err error) bool {
	if h.ai == nil || errors.Is(err, assistant.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant is not configured"})
		return true
	}
	return false
}

type diagnoseRequest struct {
	Content string `json:"content"`
}

func (h *AssistantHandler) Diagnose(c *gin.Context) {
	if h.unavailable(c, nil) {
		return
	}
	var req diagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	items, err := h.ai.Diagnose(c.Request.Context(), req.Content)
	if err != nil {
		if !h.unavailable(c, err) {
			respondError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type askRequest struct {
	Question string                `json:"question"`
	Criteria *model.FilterCriteria `json:"criteria,omitempty"`
}

// Ask answers over the tickets the user can see; without criteria that is
// every ticket in scope.
func (h *AssistantHandler) Ask(c *gin.Context) {
	if h.unavailable(c, nil) {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	crit := model.FilterCriteria{ViewAll: true}
	if req.Criteria != nil {
		crit = *req.Criteria
	}
	tickets, err := h.svc.List(c.Request.Context(), currentUser(c), crit)
	if err != nil {
		respondError(c, err)
		return
	}
	ans, err := h.ai.Ask(c.Request.Context(), req.Question, tickets)
	if err != nil {
		if !h.unavailable(c, err) {
			respondError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, ans)
}
