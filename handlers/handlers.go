package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vizinsight/config"
	"vizinsight/db"
	"vizinsight/events"
	"vizinsight/models"
	"vizinsight/ratelimit"
	"vizinsight/service"
	"vizinsight/session"
	"vizinsight/surface"
)

// @title           Viz Query API
// @version         1.0
// @description     Ask questions about your data in plain language and get an answer, the SQL behind it and a chart.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:9090
// @BasePath  /

// @schemes   http https

// HealthChecker reports the inference endpoint status.
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
}

// Pinger reports the warehouse status.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	DB           *db.DB
	AI           HealthChecker
	Warehouse    Pinger
	Orchestrator *service.Orchestrator
	Surfaces     *surface.Manager
	Counter      *ratelimit.Counter
	Hub          *events.Hub
	Links        config.LinkConfig
}

type Handlers struct {
	db           *db.DB
	aiService    HealthChecker
	warehouse    Pinger
	orchestrator *service.Orchestrator
	surfaces     *surface.Manager
	counter      *ratelimit.Counter
	hub          *events.Hub
	links        config.LinkConfig
}

func New(d Deps) *Handlers {
	return &Handlers{
		db:           d.DB,
		aiService:    d.AI,
		warehouse:    d.Warehouse,
		orchestrator: d.Orchestrator,
		surfaces:     d.Surfaces,
		counter:      d.Counter,
		hub:          d.Hub,
		links:        d.Links,
	}
}

// fail writes the user-facing form of err. The error itself only reaches
// the request log.
func (h *Handlers) fail(c *gin.Context, err error) {
	f := service.NoticeFor(err, h.links)
	_ = c.Error(err)
	c.AbortWithStatusJSON(f.Status, models.ErrorResponse{Error: f.Code, Notice: f.Notice})
}

func (h *Handlers) badRequest(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
		Error: code,
		Notice: &models.Notice{
			Kind:    models.NoticeToast,
			Level:   "warning",
			Title:   "Invalid request",
			Message: message,
		},
	})
}

// user returns the caller's id, or writes 401 and returns false.
func (h *Handlers) user(c *gin.Context) (string, bool) {
	userID := session.UserID(c)
	if userID == "" {
		h.fail(c, session.ErrNoSession)
		return "", false
	}
	return userID, true
}

// surface resolves the :id path parameter for the caller.
func (h *Handlers) surface(c *gin.Context) (*surface.Surface, bool) {
	userID, ok := h.user(c)
	if !ok {
		return nil, false
	}
	s, err := h.surfaces.Get(c.Param("id"), userID)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return s, true
}
