package handler

import (
	"net/http"

	"github.com/diticoms/service-desk/internal/middleware"
	"github.com/diticoms/service-desk/internal/model"
	"github.com/diticoms/service-desk/internal/service"
	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	svc service.DeskServicer
}

func NewSettingsHandler(svc service.DeskServicer) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// Get returns the cached technicians and price list.
func (h *SettingsHandler) Get(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"technicians": snap.Technicians,
		"price_list":  snap.PriceList,
		"synced_at":   snap.SyncedAt,
	})
}

type techniciansRequest struct {
	Technicians []string `json:"technicians"`
}

func (h *SettingsHandler) SaveTechnicians(c *gin.Context) {
	var req techniciansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	list, err := h.svc.SaveTechnicians(c.Request.Context(), currentUser(c), req.Technicians)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"technicians": list})
}

func (h *SettingsHandler) Config(c *gin.Context) {
	cfg, err := h.svc.Config(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// SaveConfig runs behind optional auth: the first config can be saved before
// anyone has logged in.
func (h *SettingsHandler) SaveConfig(c *gin.Context) {
	var req model.AppConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	cfg, err := h.svc.SaveConfig(c.Request.Context(), middleware.UserFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
