package handler

import (
	"context"
	"net/http"

	"github.com/diticoms/service-desk/internal/invoice"
	"github.com/diticoms/service-desk/internal/logger"
	"github.com/diticoms/service-desk/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Uploader is satisfied by *invoice.Uploader.
type Uploader interface {
	Upload(ctx context.Context, ticketID string, png []byte) (string, error)
}

type InvoiceHandler struct {
	tickets  *TicketHandler
	svc      service.DeskServicer
	renderer invoice.Renderer
	uploader Uploader
}

// NewInvoiceHandler accepts a nil renderer or uploader; the matching
// endpoints then answer 503.
func NewInvoiceHandler(svc service.DeskServicer, renderer invoice.Renderer, uploader Uploader) *InvoiceHandler {
	return &InvoiceHandler{tickets: NewTicketHandler(svc), svc: svc, renderer: renderer, uploader: uploader}
}

func (h *InvoiceHandler) html(c *gin.Context) (string, string, bool) {
	t, ok := h.tickets.load(c)
	if !ok {
		return "", "", false
	}
	cfg, err := h.svc.Config(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return "", "", false
	}
	page, err := invoice.RenderHTML(t, cfg.BankInfo)
	if err != nil {
		respondError(c, err)
		return "", "", false
	}
	return t.ID, page, true
}

func (h *InvoiceHandler) HTML(c *gin.Context) {
	_, page, ok := h.html(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (h *InvoiceHandler) PNG(c *gin.Context) {
	if h.renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "invoice rendering is not configured"})
		return
	}
	id, page, ok := h.html(c)
	if !ok {
		return
	}
	png, err := h.renderer.RenderPNG(c.Request.Context(), page)
	if err != nil {
		logger.FromGin(c).Error("invoice render failed", zap.String("ticket_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "invoice rendering failed"})
		return
	}
	c.Header("Content-Disposition", `inline; filename="invoice-`+id+`.png"`)
	c.Data(http.StatusOK, "image/png", png)
}

// Share renders the receipt, stores it and returns a link for the customer.
func (h *InvoiceHandler) Share(c *gin.Context) {
	if h.renderer == nil || h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "invoice sharing is not configured"})
		return
	}
	id, page, ok := h.html(c)
	if !ok {
		return
	}
	png, err := h.renderer.RenderPNG(c.Request.Context(), page)
	if err != nil {
		logger.FromGin(c).Error("invoice render failed", zap.String("ticket_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "invoice rendering failed"})
		return
	}
	link, err := h.uploader.Upload(c.Request.Context(), id, png)
	if err != nil {
		logger.FromGin(c).Error("invoice upload failed", zap.String("ticket_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "invoice upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": link})
}
