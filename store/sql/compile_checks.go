package sqlstore

import (
	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/webhooks"
)

var (
	_ core.OverrideStore      = (*OverrideStore)(nil)
	_ core.OverrideStore      = (*CachedOverrideStore)(nil)
	_ webhooks.ReportRecorder = (*DeliveryLogStore)(nil)
)
