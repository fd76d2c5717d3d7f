package httpapi

import (
	"net/http"

	bocommand "github.com/goliatone/go-backoffice/command"
	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/query"

	"github.com/gin-gonic/gin"
)

func (s *Server) listEndpoints(c *gin.Context) {
	endpoints, err := query.NewEffectiveEndpointsQuery(s.endpoints).Query(c.Request.Context(), query.EffectiveEndpointsMessage{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints})
}

func (s *Server) endpointGroups(c *gin.Context) {
	groups, err := query.NewEndpointGroupsQuery(s.endpoints).Query(c.Request.Context(), query.EndpointGroupsMessage{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// saveEndpoints replaces the whole override document. Blank values clear
// their key.
func (s *Server) saveEndpoints(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, badRequest("httpapi: body must be a JSON object of endpoint URLs"))
		return
	}
	overrides := make(map[core.OperationKey]string, len(body))
	for key, value := range body {
		overrides[core.OperationKey(key)] = value
	}
	msg := bocommand.SaveEndpointsMessage{Overrides: overrides}
	if err := msg.Validate(); err != nil {
		s.writeError(c, err)
		return
	}
	if err := bocommand.NewSaveEndpointsCommand(s.endpoints).Execute(c.Request.Context(), msg); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": s.endpoints.Endpoints()})
}

func (s *Server) reloadEndpoints(c *gin.Context) {
	if err := bocommand.NewReloadEndpointsCommand(s.endpoints).Execute(c.Request.Context(), bocommand.ReloadEndpointsMessage{}); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": s.endpoints.Endpoints()})
}
