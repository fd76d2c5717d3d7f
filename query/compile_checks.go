package query

import (
	"github.com/goliatone/go-backoffice/core"
	sqlstore "github.com/goliatone/go-backoffice/store/sql"
	bosync "github.com/goliatone/go-backoffice/sync"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[AgendaSnapshotMessage, AgendaView]                       = (*AgendaSnapshotQuery)(nil)
	_ gocmd.Querier[EffectiveEndpointsMessage, map[core.OperationKey]string] = (*EffectiveEndpointsQuery)(nil)
	_ gocmd.Querier[EndpointGroupsMessage, []core.EndpointGroupView]         = (*EndpointGroupsQuery)(nil)
	_ gocmd.Querier[ResolveEndpointMessage, ResolvedEndpoint]                = (*ResolveEndpointQuery)(nil)
	_ gocmd.Querier[RecentDeliveriesMessage, []sqlstore.DeliveryLogEntry]    = (*RecentDeliveriesQuery)(nil)

	_ AgendaReader      = (*bosync.Coordinator)(nil)
	_ EndpointReader    = (*core.Service)(nil)
	_ DeliveryLogReader = (*sqlstore.DeliveryLogStore)(nil)
)
