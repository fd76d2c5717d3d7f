package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-backoffice/calendar"
	bocommand "github.com/goliatone/go-backoffice/command"
	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/query"
	bosync "github.com/goliatone/go-backoffice/sync"
	gocmd "github.com/goliatone/go-command"

	"github.com/gin-gonic/gin"
)

func (s *Server) routeCategory(c *gin.Context) (core.Category, bool) {
	category, err := core.ParseCategory(c.Param("category"))
	if err != nil {
		s.writeError(c, err)
		return "", false
	}
	return category, true
}

// useCategory points the operator view at category. Switching category
// triggers a fresh read inside the coordinator. Callers hold viewMu until
// they are done with the view.
func (s *Server) useCategory(c *gin.Context, category core.Category) (bosync.Snapshot, bool) {
	snapshot := s.agenda.Snapshot()
	if snapshot.Category == category {
		return snapshot, true
	}
	collector := gocmd.NewResult[bosync.Snapshot]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	msg := bocommand.SetCategoryMessage{Category: category}
	if err := msg.Validate(); err != nil {
		s.writeError(c, err)
		return bosync.Snapshot{}, false
	}
	if err := bocommand.NewSetCategoryCommand(s.agenda).Execute(ctx, msg); err != nil {
		s.writeError(c, err)
		return bosync.Snapshot{}, false
	}
	snapshot, _ = collector.Load()
	return snapshot, true
}

// useDate applies ?date= when present. An empty value clears the filter.
func (s *Server) useDate(c *gin.Context, snapshot bosync.Snapshot) (bosync.Snapshot, bool) {
	date, ok := c.GetQuery("date")
	if !ok {
		if snapshot.State == bosync.StateIdle {
			return s.agenda.Refresh(c.Request.Context()), true
		}
		return snapshot, true
	}
	date = strings.TrimSpace(date)
	if date == snapshot.Filter.Date && snapshot.State != bosync.StateIdle {
		return snapshot, true
	}
	msg := bocommand.SetDateFilterMessage{Date: date}
	if err := msg.Validate(); err != nil {
		s.writeError(c, err)
		return bosync.Snapshot{}, false
	}
	collector := gocmd.NewResult[bosync.Snapshot]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := bocommand.NewSetDateFilterCommand(s.agenda).Execute(ctx, msg); err != nil {
		s.writeError(c, err)
		return bosync.Snapshot{}, false
	}
	snapshot, _ = collector.Load()
	return snapshot, true
}

func (s *Server) agendaView(c *gin.Context) (query.AgendaView, bool) {
	category, ok := s.routeCategory(c)
	if !ok {
		return query.AgendaView{}, false
	}
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	snapshot, ok := s.useCategory(c, category)
	if !ok {
		return query.AgendaView{}, false
	}
	if _, ok := s.useDate(c, snapshot); !ok {
		return query.AgendaView{}, false
	}
	view, err := query.NewAgendaSnapshotQuery(s.agenda, s.location).Query(c.Request.Context(), query.AgendaSnapshotMessage{
		Search: c.Query("q"),
	})
	if err != nil {
		s.writeError(c, err)
		return query.AgendaView{}, false
	}
	return view, true
}

func (s *Server) listEvents(c *gin.Context) {
	view, ok := s.agendaView(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) exportEvents(c *gin.Context) {
	view, ok := s.agendaView(c)
	if !ok {
		return
	}
	name := fmt.Sprintf("Agenda %s", view.Category)
	body := calendar.ExportICS(view.Events, name, s.now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(view.Category)+".ics"))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

func (s *Server) refreshAgenda(c *gin.Context) {
	category, ok := s.routeCategory(c)
	if !ok {
		return
	}
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if _, ok := s.useCategory(c, category); !ok {
		return
	}
	collector := gocmd.NewResult[bosync.Snapshot]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	msg := bocommand.RefreshAgendaMessage{ViaPost: strings.EqualFold(c.Query("via"), "post")}
	if err := bocommand.NewRefreshAgendaCommand(s.agenda).Execute(ctx, msg); err != nil {
		s.writeError(c, err)
		return
	}
	snapshot, _ := collector.Load()
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) addEvent(c *gin.Context) {
	category, ok := s.routeCategory(c)
	if !ok {
		return
	}
	var form core.EventForm
	if err := c.ShouldBindJSON(&form); err != nil {
		s.writeError(c, badRequest("httpapi: body must be an event form"))
		return
	}
	msg := bocommand.AddEventMessage{Category: category, Form: form}
	if err := msg.Validate(); err != nil {
		s.writeError(c, err)
		return
	}
	s.runMutation(c, category, http.StatusCreated, func(ctx context.Context) error {
		return bocommand.NewAddEventCommand(s.agenda).Execute(ctx, msg)
	})
}

func (s *Server) editEvent(c *gin.Context) {
	category, ok := s.routeCategory(c)
	if !ok {
		return
	}
	var form core.EventForm
	if err := c.ShouldBindJSON(&form); err != nil {
		s.writeError(c, badRequest("httpapi: body must be an event form"))
		return
	}
	msg := bocommand.EditEventMessage{Category: category, ID: c.Param("id"), Form: form}
	if err := msg.Validate(); err != nil {
		s.writeError(c, err)
		return
	}
	s.runMutation(c, category, http.StatusOK, func(ctx context.Context) error {
		return bocommand.NewEditEventCommand(s.agenda).Execute(ctx, msg)
	})
}

func (s *Server) deleteEvent(c *gin.Context) {
	category, ok := s.routeCategory(c)
	if !ok {
		return
	}
	msg := bocommand.DeleteEventMessage{Category: category, ID: c.Param("id")}
	if err := msg.Validate(); err != nil {
		s.writeError(c, err)
		return
	}
	s.runMutation(c, category, http.StatusOK, func(ctx context.Context) error {
		return bocommand.NewDeleteEventCommand(s.agenda).Execute(ctx, msg)
	})
}

// runMutation switches the view to category, executes a mutation command
// against it and answers with its typed result and the view after the
// reconciling read. The request body is bound before viewMu is taken.
func (s *Server) runMutation(c *gin.Context, category core.Category, status int, run func(context.Context) error) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if _, ok := s.useCategory(c, category); !ok {
		return
	}
	collector := gocmd.NewResult[core.MutationResult]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := run(ctx); err != nil {
		s.writeError(c, err)
		return
	}
	result, _ := collector.Load()
	c.JSON(status, gin.H{"result": result, "agenda": s.agenda.Snapshot()})
}
