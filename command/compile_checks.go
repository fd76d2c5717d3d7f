package command

import (
	bosync "github.com/goliatone/go-backoffice/sync"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[AddEventMessage]           = (*AddEventCommand)(nil)
	_ gocmd.Commander[EditEventMessage]          = (*EditEventCommand)(nil)
	_ gocmd.Commander[DeleteEventMessage]        = (*DeleteEventCommand)(nil)
	_ gocmd.Commander[SetCategoryMessage]        = (*SetCategoryCommand)(nil)
	_ gocmd.Commander[SetDateFilterMessage]      = (*SetDateFilterCommand)(nil)
	_ gocmd.Commander[RefreshAgendaMessage]      = (*RefreshAgendaCommand)(nil)
	_ gocmd.Commander[SaveEndpointsMessage]      = (*SaveEndpointsCommand)(nil)
	_ gocmd.Commander[ReloadEndpointsMessage]    = (*ReloadEndpointsCommand)(nil)
	_ gocmd.Commander[DeliverIntegrationMessage] = (*DeliverIntegrationCommand)(nil)

	_ AgendaService = (*bosync.Coordinator)(nil)
)
