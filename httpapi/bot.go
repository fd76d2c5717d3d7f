package httpapi

import (
	"net/http"
	"strconv"

	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/query"
	"github.com/goliatone/go-backoffice/webhooks"

	"github.com/gin-gonic/gin"
)

type pauseRequest struct {
	Phone    string `json:"phone"`
	Duration *int   `json:"duration"`
}

type startRequest struct {
	Phone string `json:"phone"`
}

type messageRequest struct {
	Phone         string `json:"phone"`
	Message       string `json:"message"`
	PauseDuration int    `json:"pauseDuration"`
}

func (s *Server) pauseBot(c *gin.Context) {
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("httpapi: body must carry phone and optional duration"))
		return
	}
	report, err := s.bot.PauseBot(c.Request.Context(), req.Phone, req.Duration)
	s.writeReport(c, report, err)
}

func (s *Server) startBot(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("httpapi: body must carry phone"))
		return
	}
	report, err := s.bot.StartBot(c.Request.Context(), req.Phone)
	s.writeReport(c, report, err)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("httpapi: body must carry phone and message"))
		return
	}
	report, err := s.bot.SendMessage(c.Request.Context(), req.Phone, req.Message, req.PauseDuration)
	s.writeReport(c, report, err)
}

// writeReport answers 200 on success. A delivery that exhausted its retries is
// a 502 carrying the report.
func (s *Server) writeReport(c *gin.Context, report webhooks.Report, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "report": reportView(report)})
		return
	}
	if report.Operation == "" || len(report.Attempts) == 0 {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"success": false, "report": reportView(report)})
}

func reportView(report webhooks.Report) gin.H {
	view := gin.H{
		"operation":   report.Operation,
		"url":         report.URL,
		"status_code": report.StatusCode,
		"attempts":    len(report.Attempts),
	}
	if report.LastError != nil {
		view["error"] = report.LastError.Error()
	}
	return view
}

func (s *Server) listDeliveries(c *gin.Context) {
	msg := query.RecentDeliveriesMessage{Operation: core.OperationKey(c.Query("operation"))}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(c, badRequest("httpapi: limit must be a number"))
			return
		}
		msg.Limit = limit
	}
	if err := msg.Validate(); err != nil {
		s.writeError(c, err)
		return
	}
	entries, err := query.NewRecentDeliveriesQuery(s.deliveries).Query(c.Request.Context(), msg)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": entries})
}
