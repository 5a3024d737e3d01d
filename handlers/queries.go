package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vizinsight/models"
	"vizinsight/service"
)

const defaultHistoryLimit = 20

// LimitHandler reports today's remaining questions
// @Summary      Daily limit
// @Tags         Queries
// @Produce      json
// @Param        X-User-ID  header    string  true  "Caller user id"
// @Success      200        {object}  models.LimitResponse
// @Failure      401        {object}  models.ErrorResponse  "No active session"
// @Router       /api/limit [get]
func (h *Handlers) LimitHandler(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	count, err := h.counter.Count(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	remaining := h.counter.Max() - count
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, models.LimitResponse{
		UserID:    userID,
		Count:     count,
		Max:       h.counter.Max(),
		Remaining: remaining,
		Key:       h.counter.Key(userID),
	})
}

// ListQueriesHandler lists past questions
// @Summary      Query history
// @Description  The caller's past questions, newest first.
// @Tags         Queries
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of records"  default(20)
// @Success      200    {array}   models.QueryRecord
// @Failure      401    {object}  models.ErrorResponse  "No active session"
// @Router       /api/queries [get]
func (h *Handlers) ListQueriesHandler(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := h.db.ListQueryRecords(userID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []models.QueryRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// ExportQueryHandler downloads the rows of a past question
// @Summary      Export query
// @Tags         Queries
// @Produce      json
// @Produce      text/csv
// @Param        id      path      string  true   "Query id"
// @Param        format  query     string  false  "csv or json"  default(json)
// @Success      200     {object}  service.ResultFile
// @Failure      400     {object}  models.ErrorResponse  "Unsupported format"
// @Failure      404     {object}  models.ErrorResponse  "Unknown query"
// @Router       /api/queries/{id}/export [get]
func (h *Handlers) ExportQueryHandler(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	record, err := h.db.GetQueryRecord(userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	format := c.DefaultQuery("format", "json")
	var buf bytes.Buffer
	contentType, err := service.WriteResult(&buf, record, format)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="query_%s.%s"`, record.ID, format))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
