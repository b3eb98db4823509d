package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/diticoms/service-desk/internal/filter"
	"github.com/diticoms/service-desk/internal/middleware"
	"github.com/diticoms/service-desk/internal/model"
	"github.com/diticoms/service-desk/internal/report"
	"github.com/diticoms/service-desk/internal/service"
	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	svc service.DeskServicer
	now func() time.Time
}

func NewTicketHandler(svc service.DeskServicer) *TicketHandler {
	return &TicketHandler{svc: svc, now: time.Now}
}

func currentUser(c *gin.Context) model.User {
	if u := middleware.UserFrom(c); u != nil {
		return *u
	}
	return model.User{}
}

// criteriaFromQuery reads the list filters. Without any date bound and without
// view_all the list covers today, like the desk's default view.
func criteriaFromQuery(c *gin.Context, now time.Time) (model.FilterCriteria, error) {
	crit := model.FilterCriteria{
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
		Search:     c.Query("q"),
		Technician: c.Query("technician"),
		Status:     model.TicketStatus(c.Query("status")),
	}
	if v := c.Query("view_all"); v != "" {
		all, err := strconv.ParseBool(v)
		if err != nil {
			return crit, errs.ErrInvalidInput
		}
		crit.ViewAll = all
	}
	for _, d := range []string{crit.DateFrom, crit.DateTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return crit, errs.ErrInvalidInput
		}
	}
	if crit.Status != "" && !crit.Status.Valid() {
		return crit, errs.ErrInvalidInput
	}
	if !crit.ViewAll && crit.DateFrom == "" && crit.DateTo == "" {
		today := filter.Today(now)
		crit.DateFrom, crit.DateTo = today.DateFrom, today.DateTo
	}
	return crit, nil
}

// List returns the filtered tickets. Admins also get the totals.
func (h *TicketHandler) List(c *gin.Context) {
	crit, err := criteriaFromQuery(c, h.now())
	if err != nil {
		badRequest(c, "invalid filter")
		return
	}
	u := currentUser(c)
	items, err := h.svc.List(c.Request.Context(), u, crit)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{
		"tickets":  items,
		"total":    len(items),
		"criteria": crit,
	}
	if u.IsAdmin() {
		resp["summary"] = service.Summarize(items)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TicketHandler) Refresh(c *gin.Context) {
	snap, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       len(snap.Tickets),
		"technicians": snap.Technicians,
		"synced_at":   snap.SyncedAt,
	})
}

// load fetches a ticket the current user may see. Out-of-scope tickets are
// reported as missing.
func (h *TicketHandler) load(c *gin.Context) (model.Ticket, bool) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err == nil && !service.CanAccess(currentUser(c), t) {
		err = errs.ErrTicketNotFound
	}
	if err != nil {
		respondError(c, err)
		return model.Ticket{}, false
	}
	return t, true
}

func (h *TicketHandler) Get(c *gin.Context) {
	t, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Create(c *gin.Context) {
	var in service.TicketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.svc.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Update(c *gin.Context) {
	var in service.TicketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.svc.Update(c.Request.Context(), currentUser(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ShareText returns the customer summary as plain text.
func (h *TicketHandler) ShareText(c *gin.Context) {
	t, ok := h.load(c)
	if !ok {
		return
	}
	text := report.ShareText(t)
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(http.StatusOK, gin.H{"text": text})
		return
	}
	c.String(http.StatusOK, text)
}

// Export streams the filtered list as an xlsx workbook.
func (h *TicketHandler) Export(c *gin.Context) {
	now := h.now()
	crit, err := criteriaFromQuery(c, now)
	if err != nil {
		badRequest(c, "invalid filter")
		return
	}
	u := currentUser(c)
	items, err := h.svc.List(c.Request.Context(), u, crit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(now)+`"`)
	c.Header("Content-Type", report.ContentType)
	c.Status(http.StatusOK)
	if err := report.Write(c.Writer, items, u.IsAdmin()); err != nil {
		c.Error(err)
	}
}
