package query

import (
	"context"
	"time"

	"github.com/goliatone/go-backoffice/calendar"
	"github.com/goliatone/go-backoffice/core"
	sqlstore "github.com/goliatone/go-backoffice/store/sql"
	bosync "github.com/goliatone/go-backoffice/sync"
)

type AgendaReader interface {
	Snapshot() bosync.Snapshot
}

type EndpointReader interface {
	Endpoints() map[core.OperationKey]string
	EndpointGroups() []core.EndpointGroupView
	ResolveEndpoint(key core.OperationKey, category core.Category) (string, error)
}

type DeliveryLogReader interface {
	Recent(ctx context.Context, operation string, limit int) ([]sqlstore.DeliveryLogEntry, error)
}

// AgendaView is a snapshot with its events narrowed by day and search.
type AgendaView struct {
	bosync.Snapshot
	Day    core.DateFilter `json:"day"`
	Search string          `json:"search,omitempty"`
	Total  int             `json:"total"`
}

type ResolvedEndpoint struct {
	Operation core.OperationKey `json:"operation"`
	Category  core.Category     `json:"category,omitempty"`
	URL       string            `json:"url"`
}

type AgendaSnapshotQuery struct {
	reader   AgendaReader
	location *time.Location
}

// NewAgendaSnapshotQuery filters days in loc; nil uses the default agenda
// offset.
func NewAgendaSnapshotQuery(reader AgendaReader, loc *time.Location) *AgendaSnapshotQuery {
	return &AgendaSnapshotQuery{reader: reader, location: loc}
}

func (q *AgendaSnapshotQuery) Query(_ context.Context, msg AgendaSnapshotMessage) (AgendaView, error) {
	if q == nil || q.reader == nil {
		return AgendaView{}, queryDependencyError("query: agenda reader is required")
	}
	day, err := core.ParseDateFilter(msg.Day)
	if err != nil {
		return AgendaView{}, queryWrapValidation(err, "query: invalid day")
	}
	snapshot := q.reader.Snapshot()
	total := len(snapshot.Events)
	snapshot.Events = calendar.FilterEvents(snapshot.Events, calendar.EventQuery{
		Day:      day,
		Search:   msg.Search,
		Location: q.location,
	})
	return AgendaView{Snapshot: snapshot, Day: day, Search: msg.Search, Total: total}, nil
}

type EffectiveEndpointsQuery struct {
	reader EndpointReader
}

func NewEffectiveEndpointsQuery(reader EndpointReader) *EffectiveEndpointsQuery {
	return &EffectiveEndpointsQuery{reader: reader}
}

func (q *EffectiveEndpointsQuery) Query(context.Context, EffectiveEndpointsMessage) (map[core.OperationKey]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: endpoint reader is required")
	}
	return q.reader.Endpoints(), nil
}

type EndpointGroupsQuery struct {
	reader EndpointReader
}

func NewEndpointGroupsQuery(reader EndpointReader) *EndpointGroupsQuery {
	return &EndpointGroupsQuery{reader: reader}
}

func (q *EndpointGroupsQuery) Query(context.Context, EndpointGroupsMessage) ([]core.EndpointGroupView, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: endpoint reader is required")
	}
	return q.reader.EndpointGroups(), nil
}

type ResolveEndpointQuery struct {
	reader EndpointReader
}

func NewResolveEndpointQuery(reader EndpointReader) *ResolveEndpointQuery {
	return &ResolveEndpointQuery{reader: reader}
}

func (q *ResolveEndpointQuery) Query(_ context.Context, msg ResolveEndpointMessage) (ResolvedEndpoint, error) {
	if q == nil || q.reader == nil {
		return ResolvedEndpoint{}, queryDependencyError("query: endpoint reader is required")
	}
	url, err := q.reader.ResolveEndpoint(msg.Operation, msg.Category)
	if err != nil {
		return ResolvedEndpoint{}, err
	}
	return ResolvedEndpoint{Operation: msg.Operation, Category: msg.Category, URL: url}, nil
}

type RecentDeliveriesQuery struct {
	reader DeliveryLogReader
}

func NewRecentDeliveriesQuery(reader DeliveryLogReader) *RecentDeliveriesQuery {
	return &RecentDeliveriesQuery{reader: reader}
}

func (q *RecentDeliveriesQuery) Query(ctx context.Context, msg RecentDeliveriesMessage) ([]sqlstore.DeliveryLogEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery log reader is required")
	}
	return q.reader.Recent(ctx, string(msg.Operation), msg.Limit)
}
