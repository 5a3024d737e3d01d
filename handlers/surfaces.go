package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"vizinsight/models"
	"vizinsight/mounter"
)

var validTabs = map[string]bool{
	mounter.TabAnswer: true,
	mounter.TabSQL:    true,
	mounter.TabData:   true,
	mounter.TabCharts: true,
}

// CreateSurfaceHandler opens a surface for one browser tab
// @Summary      Create surface
// @Description  Create the server-side state for one browser tab. Every query runs on a surface.
// @Tags         Surfaces
// @Produce      json
// @Param        X-User-ID  header    string  true  "Caller user id"
// @Success      201        {object}  models.SurfaceResponse
// @Failure      401        {object}  models.ErrorResponse  "No active session"
// @Router       /api/surfaces [post]
func (h *Handlers) CreateSurfaceHandler(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	s := h.surfaces.Create(userID)
	c.JSON(http.StatusCreated, s.Snapshot())
}

// QueryHandler asks a question on a surface
// @Summary      Submit query
// @Description  Send a natural-language question. Only one question per surface may be in flight; the daily limit is checked before anything is sent.
// @Tags         Queries
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Surface id"
// @Param        request  body      models.QueryRequest  true  "Question"
// @Success      200      {object}  models.QueryResult
// @Failure      400      {object}  models.ErrorResponse  "Empty or invalid prompt"
// @Failure      401      {object}  models.ErrorResponse  "No active session"
// @Failure      409      {object}  models.ErrorResponse  "A query is already in flight"
// @Failure      424      {object}  models.ErrorResponse  "No data source connected"
// @Failure      429      {object}  models.ErrorResponse  "Daily or plan limit reached"
// @Failure      502      {object}  models.ErrorResponse  "Inference failed"
// @Router       /api/surfaces/{id}/query [post]
func (h *Handlers) QueryHandler(c *gin.Context) {
	s, ok := h.surface(c)
	if !ok {
		return
	}

	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid_request", "The request body must be JSON with a prompt.")
		return
	}
	req.UserID = s.UserID
	req.SurfaceID = s.ID

	result, err := h.orchestrator.SubmitQuery(c.Request.Context(), s, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetResultHandler returns the current result of a surface
// @Summary      Get result
// @Tags         Queries
// @Produce      json
// @Param        id   path      string  true  "Surface id"
// @Success      200  {object}  models.QueryResult
// @Success      204  "No result yet"
// @Failure      404  {object}  models.ErrorResponse  "Unknown surface"
// @Router       /api/surfaces/{id}/result [get]
func (h *Handlers) GetResultHandler(c *gin.Context) {
	s, ok := h.surface(c)
	if !ok {
		return
	}
	result := s.Result()
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClearResultHandler drops the current result
// @Summary      Clear result
// @Description  Drop the current result and its chart. A query still in flight will be discarded when it finishes.
// @Tags         Queries
// @Param        id   path  string  true  "Surface id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse  "Unknown surface"
// @Router       /api/surfaces/{id}/result [delete]
func (h *Handlers) ClearResultHandler(c *gin.Context) {
	s, ok := h.surface(c)
	if !ok {
		return
	}
	s.Clear()
	c.Status(http.StatusNoContent)
}

// SetTabHandler switches the active tab
// @Summary      Switch tab
// @Description  Opening the charts tab mounts the current chart; any other tab tears it down.
// @Tags         Surfaces
// @Accept       json
// @Produce      json
// @Param        id       path      string             true  "Surface id"
// @Param        request  body      models.TabRequest  true  "Tab: answer, sql, data or charts"
// @Success      200      {object}  models.SurfaceResponse
// @Failure      400      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse  "Unknown surface"
// @Router       /api/surfaces/{id}/tab [put]
func (h *Handlers) SetTabHandler(c *gin.Context) {
	s, ok := h.surface(c)
	if !ok {
		return
	}

	var req models.TabRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validTabs[req.Tab] {
		h.badRequest(c, "invalid_tab", "Tab must be one of answer, sql, data or charts.")
		return
	}
	if err := s.SetTab(c.Request.Context(), req.Tab); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// PageHandler renders the chart page of a surface
// @Summary      Chart page
// @Tags         Surfaces
// @Produce      html
// @Param        id   path      string  true  "Surface id"
// @Success      200  {string}  string  "HTML document"
// @Failure      404  {object}  models.ErrorResponse  "Unknown surface"
// @Router       /api/surfaces/{id}/page [get]
func (h *Handlers) PageHandler(c *gin.Context) {
	s, ok := h.surface(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.Mounter().Render(c.Writer); err != nil {
		log.Error().Err(err).Str("surface", s.ID).Msg("render page")
	}
}

// CloseSurfaceHandler closes a surface
// @Summary      Close surface
// @Description  Tear down the surface's chart and forget it, as when the browser tab closes.
// @Tags         Surfaces
// @Param        id   path  string  true  "Surface id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse  "Unknown surface"
// @Router       /api/surfaces/{id} [delete]
func (h *Handlers) CloseSurfaceHandler(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	if err := h.surfaces.Remove(c.Param("id"), userID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EventsHandler streams lifecycle events of a surface
// @Summary      Query events
// @Description  Websocket stream of submitted, inference_completed, chart_ready, chart_failed, completed and failed events.
// @Tags         Surfaces
// @Param        surface  query  string  true  "Surface id"
// @Success      101
// @Failure      404  {object}  models.ErrorResponse  "Unknown surface"
// @Router       /ws [get]
func (h *Handlers) EventsHandler(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	s, err := h.surfaces.Get(c.Query("surface"), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, s.ID); err != nil {
		log.Warn().Err(err).Str("surface", s.ID).Msg("event stream")
	}
}
