package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"attendance/internal/app"
	"attendance/internal/importer"
	"attendance/internal/models"
	"attendance/internal/state"
	"attendance/internal/syncer"
	"attendance/internal/templates"
)

// Router is the subset of gin routing used by the handlers.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	PUT(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	PATCH(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	DELETE(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {
	// The application the HTTP transport is provided for.
	App *app.App

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler registers every route on opts.Router.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}

	r.GET("/events", h.listEvents)
	r.POST("/events", h.createEvent)
	r.GET("/events/:id", h.getEvent)
	r.PATCH("/events/:id", h.renameEvent)
	r.DELETE("/events/:id", h.deleteEvent)
	r.PUT("/events/:id/columns", h.setColumns)
	r.GET("/events/:id/stats", h.eventStats)
	r.POST("/events/:id/push", h.pushEvent)

	r.GET("/events/:id/guests", h.listGuests)
	r.POST("/events/:id/guests", h.addGuest)
	r.POST("/events/:id/guests/bulk-status", h.bulkStatus)
	r.POST("/events/:id/guests/import", h.importGuests)
	r.PATCH("/events/:id/guests/:guestId", h.updateGuest)
	r.PUT("/events/:id/guests/:guestId/status", h.updateStatus)
	r.DELETE("/events/:id/guests/:guestId", h.deleteGuest)

	r.GET("/sync", h.syncStatus)
	r.POST("/sync/enable", h.enableSync)
	r.POST("/sync/disable", h.disableSync)
	r.POST("/sync/pull", h.pull)

	r.GET("/session", h.currentSession)
	r.POST("/session/login", h.login)
	r.POST("/session/logout", h.logout)

	r.GET("/templates", h.listTemplates)
	r.GET("/templates/presets", h.presets)
	r.POST("/templates", h.saveTemplate)
	r.POST("/templates/:id/use", h.useTemplate)
	r.DELETE("/templates/:id", h.deleteTemplate)

	r.GET("/suggest", h.suggest)
}

type httpHandler struct {
	HTTPOptions
}

type syncResponse struct {
	Attempted bool   `json:"attempted"`
	Synced    bool   `json:"synced"`
	Error     string `json:"error,omitempty"`
	Reverted  bool   `json:"reverted"`
}

func syncJSON(out syncer.Outcome) syncResponse {
	resp := syncResponse{Attempted: out.Attempted, Synced: out.Synced(), Reverted: out.Reverted}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	return resp
}

// Events

type createEventRequest struct {
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	Columns    []string `json:"columns"`
	TemplateID string   `json:"templateId"`
}

func (h *httpHandler) listEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": h.App.State.Events()})
}

func (h *httpHandler) createEvent(c *gin.Context) {
	var req createEventRequest
	if !bind(c, &req) {
		return
	}
	columns := req.Columns
	if req.TemplateID != "" {
		if h.App.Templates == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "templates are turned off"})
			return
		}
		tpl, err := h.App.Templates.Use(req.TemplateID)
		if err != nil {
			h.fail(c, err)
			return
		}
		columns = tpl.Columns
	}

	ev, out, err := h.App.Syncer.CreateEvent(c.Request.Context(), req.Name, req.Date, columns)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": ev, "sync": syncJSON(out)})
}

func (h *httpHandler) getEvent(c *gin.Context) {
	ev, err := h.App.State.Event(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": ev})
}

func (h *httpHandler) renameEvent(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !bind(c, &req) {
		return
	}
	ev, out, err := h.App.Syncer.RenameEvent(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": ev, "sync": syncJSON(out)})
}

func (h *httpHandler) deleteEvent(c *gin.Context) {
	removed, out, err := h.App.Syncer.DeleteEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed, "sync": syncJSON(out)})
}

func (h *httpHandler) setColumns(c *gin.Context) {
	var req struct {
		Columns []string `json:"columns"`
	}
	if !bind(c, &req) {
		return
	}
	ev, out, err := h.App.Syncer.SetColumns(c.Request.Context(), c.Param("id"), req.Columns)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": ev, "sync": syncJSON(out)})
}

func (h *httpHandler) eventStats(c *gin.Context) {
	stats, err := h.App.State.Stats(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) pushEvent(c *gin.Context) {
	ev, out, err := h.App.Syncer.Push(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": ev, "sync": syncJSON(out)})
}

// Guests

type guestRequest struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Fields map[string]string `json:"fields"`
	Name   string            `json:"name"`
	Phone  string            `json:"phone"`
	Email  string            `json:"email"`
}

type guestUpdateRequest struct {
	Status *string           `json:"status"`
	Fields map[string]string `json:"fields"`
	Name   *string           `json:"name"`
	Phone  *string           `json:"phone"`
	Email  *string           `json:"email"`
}

func (h *httpHandler) listGuests(c *gin.Context) {
	ev, err := h.App.State.Event(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	guests := ev.Guests
	if q := strings.TrimSpace(c.Query("status")); q != "" {
		status, err := models.ParseStatus(strings.ToLower(q))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		guests = guests[:0:0]
		for _, g := range ev.Guests {
			if g.Status == status {
				guests = append(guests, g)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"columns": ev.Columns, "guests": guests})
}

func (h *httpHandler) addGuest(c *gin.Context) {
	var req guestRequest
	if !bind(c, &req) {
		return
	}
	g, out, err := h.App.Syncer.AddGuest(c.Request.Context(), c.Param("id"), state.GuestInput{
		ID:     req.ID,
		Status: models.Status(req.Status),
		Fields: req.Fields,
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"guest": g, "sync": syncJSON(out)})
}

func (h *httpHandler) updateGuest(c *gin.Context) {
	var req guestUpdateRequest
	if !bind(c, &req) {
		return
	}
	u := state.GuestUpdate{Fields: req.Fields, Name: req.Name, Phone: req.Phone, Email: req.Email}
	if req.Status != nil {
		status := models.Status(*req.Status)
		u.Status = &status
	}
	g, out, err := h.App.Syncer.UpdateGuest(c.Request.Context(), c.Param("id"), c.Param("guestId"), u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guest": g, "sync": syncJSON(out)})
}

func (h *httpHandler) updateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if !bind(c, &req) {
		return
	}
	g, out, err := h.App.Syncer.UpdateGuestStatus(c.Request.Context(), c.Param("id"), c.Param("guestId"), models.Status(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guest": g, "sync": syncJSON(out)})
}

func (h *httpHandler) deleteGuest(c *gin.Context) {
	removed, out, err := h.App.Syncer.DeleteGuest(c.Request.Context(), c.Param("id"), c.Param("guestId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed, "sync": syncJSON(out)})
}

func (h *httpHandler) bulkStatus(c *gin.Context) {
	var req struct {
		GuestIDs []string `json:"guestIds"`
		Status   string   `json:"status"`
	}
	if !bind(c, &req) {
		return
	}
	results, err := h.App.Syncer.BulkUpdateStatus(c.Request.Context(), c.Param("id"), req.GuestIDs, models.Status(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]gin.H, 0, len(results))
	for _, r := range results {
		item := gin.H{"guestId": r.GuestID, "sync": syncJSON(r.Outcome)}
		if r.Err != nil {
			item["error"] = r.Err.Error()
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (h *httpHandler) importGuests(c *gin.Context) {
	var req struct {
		Text      string `json:"text"`
		Header    bool   `json:"header"`
		Separator string `json:"separator"`
	}
	if !bind(c, &req) {
		return
	}
	ev, err := h.App.State.Event(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	opts := importer.Options{Header: req.Header}
	if sep := []rune(req.Separator); len(sep) == 1 {
		opts.Separator = sep[0]
	}
	inputs, err := importer.Parse(req.Text, ev.Columns, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	added, out, err := h.App.Syncer.ImportGuests(c.Request.Context(), ev.ID, inputs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"guests": added, "sync": syncJSON(out)})
}

// Sync

func (h *httpHandler) syncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.App.Syncer.Status())
}

func (h *httpHandler) enableSync(c *gin.Context) {
	on, err := h.App.SetSync(true)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": on})
}

func (h *httpHandler) disableSync(c *gin.Context) {
	if _, err := h.App.SetSync(false); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

func (h *httpHandler) pull(c *gin.Context) {
	res, err := h.App.Syncer.Pull(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"created": res.Created, "updated": res.Updated, "unlinked": res.Unlinked}
	if res.Err != nil {
		resp["error"] = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Session

func (h *httpHandler) currentSession(c *gin.Context) {
	sess, ok := h.App.Session.Current()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *httpHandler) login(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bind(c, &req) {
		return
	}
	sess, err := h.App.Session.Login(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	syncOn := false
	if h.App.Features.Sync && h.App.SyncPreferred() && sess.Linked() {
		syncOn = h.App.Syncer.Enable()
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "syncEnabled": syncOn})
}

func (h *httpHandler) logout(c *gin.Context) {
	h.App.Syncer.Disable()
	if err := h.App.Session.Logout(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Templates

func (h *httpHandler) templatesOn(c *gin.Context) bool {
	if h.App.Templates == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "templates are turned off"})
		return false
	}
	return true
}

func (h *httpHandler) listTemplates(c *gin.Context) {
	if !h.templatesOn(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": h.App.Templates.List()})
}

func (h *httpHandler) presets(c *gin.Context) {
	if !h.templatesOn(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"presets": templates.Presets()})
}

func (h *httpHandler) saveTemplate(c *gin.Context) {
	if !h.templatesOn(c) {
		return
	}
	var req struct {
		Name    string   `json:"name"`
		Columns []string `json:"columns"`
		EventID string   `json:"eventId"`
	}
	if !bind(c, &req) {
		return
	}
	columns := req.Columns
	if req.EventID != "" {
		ev, err := h.App.State.Event(req.EventID)
		if err != nil {
			h.fail(c, err)
			return
		}
		columns = ev.Columns
	}
	tpl, err := h.App.Templates.Save(req.Name, columns)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *httpHandler) useTemplate(c *gin.Context) {
	if !h.templatesOn(c) {
		return
	}
	tpl, err := h.App.Templates.Use(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *httpHandler) deleteTemplate(c *gin.Context) {
	if !h.templatesOn(c) {
		return
	}
	removed, err := h.App.Templates.Delete(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// Autocomplete

func (h *httpHandler) suggest(c *gin.Context) {
	if !h.App.Features.Autocomplete {
		c.JSON(http.StatusOK, gin.H{"suggestions": []string{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
		return
	}
	names := h.App.State.Suggest(strings.TrimSpace(c.Query("q")), h.App.Features.AutocompleteMinChars, limit)
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": names})
}

func bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
