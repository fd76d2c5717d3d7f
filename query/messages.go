package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-backoffice/core"
)

const (
	TypeAgendaSnapshot     = "backoffice.query.agenda.snapshot"
	TypeEffectiveEndpoints = "backoffice.query.endpoints.effective"
	TypeEndpointGroups     = "backoffice.query.endpoints.groups"
	TypeResolveEndpoint    = "backoffice.query.endpoints.resolve"
	TypeRecentDeliveries   = "backoffice.query.deliveries.recent"
)

// AgendaSnapshotMessage narrows the current agenda view. Day and Search only
// filter what is already loaded; they never trigger a read.
type AgendaSnapshotMessage struct {
	Day    string
	Search string
}

func (AgendaSnapshotMessage) Type() string { return TypeAgendaSnapshot }

func (m AgendaSnapshotMessage) Validate() error {
	if _, err := core.ParseDateFilter(m.Day); err != nil {
		return queryWrapValidation(err, "query: invalid day")
	}
	return nil
}

type EffectiveEndpointsMessage struct{}

func (EffectiveEndpointsMessage) Type() string { return TypeEffectiveEndpoints }

type EndpointGroupsMessage struct{}

func (EndpointGroupsMessage) Type() string { return TypeEndpointGroups }

type ResolveEndpointMessage struct {
	Operation core.OperationKey
	Category  core.Category
}

func (ResolveEndpointMessage) Type() string { return TypeResolveEndpoint }

func (m ResolveEndpointMessage) Validate() error {
	if strings.TrimSpace(string(m.Operation)) == "" {
		return queryValidationError("operation", "operation is required")
	}
	if m.Category != "" && !m.Category.Valid() {
		return queryValidationError("category", fmt.Sprintf("unknown category %q", m.Category))
	}
	return nil
}

type RecentDeliveriesMessage struct {
	Operation core.OperationKey
	Limit     int
}

func (RecentDeliveriesMessage) Type() string { return TypeRecentDeliveries }

func (m RecentDeliveriesMessage) Validate() error {
	if m.Limit < 0 {
		return queryInvalidInputError("query: limit must be >= 0")
	}
	if m.Operation != "" && !core.KnownKey(m.Operation) {
		return queryValidationError("operation", fmt.Sprintf("unknown operation %q", m.Operation))
	}
	return nil
}
