// Package httpapi exposes the backoffice over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	bocommand "github.com/goliatone/go-backoffice/command"
	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/query"
	"github.com/goliatone/go-backoffice/webhooks"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/gin-gonic/gin"
)

// Agenda is the single operator view the agenda routes drive.
type Agenda interface {
	bocommand.AgendaService
	query.AgendaReader
}

type Endpoints interface {
	bocommand.EndpointService
	query.EndpointReader
}

// Bot is the subset of the integrations client the bot routes need.
type Bot interface {
	SendMessage(ctx context.Context, phone string, message string, pauseSeconds int) (webhooks.Report, error)
	PauseBot(ctx context.Context, phone string, seconds *int) (webhooks.Report, error)
	StartBot(ctx context.Context, phone string) (webhooks.Report, error)
}

type Option func(*Server)

func WithAgenda(agenda Agenda) Option {
	return func(s *Server) {
		s.agenda = agenda
	}
}

func WithEndpoints(endpoints Endpoints) Option {
	return func(s *Server) {
		s.endpoints = endpoints
	}
}

func WithBot(bot Bot) Option {
	return func(s *Server) {
		s.bot = bot
	}
}

func WithDeliveryLog(reader query.DeliveryLogReader) Option {
	return func(s *Server) {
		s.deliveries = reader
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		s.logger = glog.Ensure(logger)
	}
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(s *Server) {
		if mapper != nil {
			s.mapError = mapper
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		s.location = loc
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server holds the handlers. Routes for a nil dependency are not mounted.
type Server struct {
	agenda     Agenda
	endpoints  Endpoints
	bot        Bot
	deliveries query.DeliveryLogReader
	logger     core.Logger
	mapError   core.ErrorMapper
	location   *time.Location
	now        func() time.Time

	// viewMu spans a category switch and the read or mutation that follows,
	// since the agenda holds a single operator view.
	viewMu sync.Mutex
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:   glog.Nop(),
		mapError: defaultErrorMapper,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Router builds a gin engine with every available route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.Register(r)
	return r
}

func (s *Server) Register(r gin.IRouter) {
	r.GET("/health", s.health)

	v1 := r.Group("/v1")
	if s.endpoints != nil {
		v1.GET("/endpoints", s.listEndpoints)
		v1.PUT("/endpoints", s.saveEndpoints)
		v1.POST("/endpoints/reload", s.reloadEndpoints)
		v1.GET("/endpoints/groups", s.endpointGroups)
	}
	if s.agenda != nil {
		agenda := v1.Group("/agenda/:category")
		agenda.GET("/events", s.listEvents)
		agenda.GET("/events.ics", s.exportEvents)
		agenda.POST("/events", s.addEvent)
		agenda.POST("/refresh", s.refreshAgenda)
		agenda.PUT("/events/:id", s.editEvent)
		agenda.DELETE("/events/:id", s.deleteEvent)
	}
	if s.bot != nil {
		bot := v1.Group("/bot")
		bot.POST("/pause", s.pauseBot)
		bot.POST("/start", s.startBot)
		bot.POST("/message", s.sendMessage)
	}
	if s.deliveries != nil {
		v1.GET("/deliveries", s.listDeliveries)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.now().UTC().Format(time.RFC3339)})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := s.now()
		c.Next()
		s.logger.WithContext(c.Request.Context()).Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", s.now().Sub(started).Milliseconds(),
		)
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	mapped := s.mapError(err)
	if mapped == nil {
		mapped = defaultErrorMapper(err)
	}
	status := mapped.Code
	if status < 400 || status > 599 {
		status = core.HTTPStatus(mapped.Category)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("http request failed", "path", c.FullPath(), "error", err)
	}
	body := gin.H{
		"message":   mapped.Message,
		"text_code": mapped.TextCode,
		"category":  string(mapped.Category),
	}
	if fields := mapped.AllValidationErrors(); len(fields) > 0 {
		body["fields"] = fields
	}
	if len(mapped.Metadata) > 0 {
		body["metadata"] = mapped.Metadata
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func badRequest(message string) error {
	return core.NewError(message, goerrors.CategoryBadInput, core.ErrorBadInput, nil)
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	msg := strings.TrimSpace(err.Error())
	return core.NewError(msg, goerrors.CategoryInternal, core.ErrorInternal, nil)
}
