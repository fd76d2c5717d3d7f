package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/goliatone/go-backoffice/core"
	bosync "github.com/goliatone/go-backoffice/sync"
	"github.com/goliatone/go-backoffice/webhooks"
	gocmd "github.com/goliatone/go-command"
)

type stubAgenda struct {
	setCategoryFn   func(context.Context, core.Category) (bosync.Snapshot, error)
	setDateFilterFn func(context.Context, core.DateFilter) bosync.Snapshot
	refreshFn       func(context.Context) bosync.Snapshot
	refreshPostFn   func(context.Context) bosync.Snapshot
	addFn           func(context.Context, core.Category, core.EventForm) core.MutationResult
	editFn          func(context.Context, core.Category, string, core.EventForm) core.MutationResult
	deleteFn        func(context.Context, core.Category, string) core.MutationResult
}

func (s stubAgenda) SetCategory(ctx context.Context, category core.Category) (bosync.Snapshot, error) {
	return s.setCategoryFn(ctx, category)
}

func (s stubAgenda) SetDateFilter(ctx context.Context, filter core.DateFilter) bosync.Snapshot {
	return s.setDateFilterFn(ctx, filter)
}

func (s stubAgenda) Refresh(ctx context.Context) bosync.Snapshot {
	return s.refreshFn(ctx)
}

func (s stubAgenda) RefreshViaPost(ctx context.Context) bosync.Snapshot {
	return s.refreshPostFn(ctx)
}

func (s stubAgenda) AddEvent(ctx context.Context, category core.Category, form core.EventForm) core.MutationResult {
	return s.addFn(ctx, category, form)
}

func (s stubAgenda) EditEvent(ctx context.Context, category core.Category, id string, form core.EventForm) core.MutationResult {
	return s.editFn(ctx, category, id, form)
}

func (s stubAgenda) DeleteEvent(ctx context.Context, category core.Category, id string) core.MutationResult {
	return s.deleteFn(ctx, category, id)
}

type stubEndpoints struct {
	saved    map[core.OperationKey]string
	reloaded int
	err      error
}

func (s *stubEndpoints) SaveEndpoints(_ context.Context, overrides map[core.OperationKey]string) error {
	s.saved = overrides
	return s.err
}

func (s *stubEndpoints) ReloadEndpoints(context.Context) error {
	s.reloaded++
	return s.err
}

type stubDeliverer struct {
	key     core.OperationKey
	payload any
	err     error
}

func (s *stubDeliverer) Deliver(_ context.Context, key core.OperationKey, payload any) (webhooks.Report, error) {
	s.key = key
	s.payload = payload
	return webhooks.Report{Operation: key, Success: s.err == nil}, s.err
}

func validForm() core.EventForm {
	return core.EventForm{Date: "2024-06-01", StartTime: "09:00", EndTime: "10:00", Summary: "Mentoria"}
}

func TestAddEventCommand_StoresResult(t *testing.T) {
	agenda := stubAgenda{
		addFn: func(_ context.Context, category core.Category, form core.EventForm) core.MutationResult {
			if form.Summary != "Mentoria" {
				t.Fatalf("unexpected form %#v", form)
			}
			if category != core.CategoryVenda {
				t.Fatalf("expected message category to reach the agenda, got %q", category)
			}
			return core.MutationResult{Kind: core.MutationAdd, Status: core.MutationSucceeded, Category: category}
		},
	}
	cmd := NewAddEventCommand(agenda)
	collector := gocmd.NewResult[core.MutationResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, AddEventMessage{Category: core.CategoryVenda, Form: validForm()}); err != nil {
		t.Fatalf("execute add: %v", err)
	}
	result, ok := collector.Load()
	if !ok || !result.OK() {
		t.Fatalf("expected stored success result, got %#v", result)
	}
}

func TestMutationCommands_ReturnFailures(t *testing.T) {
	agenda := stubAgenda{
		editFn: func(_ context.Context, _ core.Category, id string, _ core.EventForm) core.MutationResult {
			if id != "evt-1" {
				t.Fatalf("expected trimmed id, got %q", id)
			}
			return core.MutationResult{Kind: core.MutationEdit, Status: core.MutationNotFound, EventID: id}
		},
		deleteFn: func(_ context.Context, category core.Category, id string) core.MutationResult {
			if category != "" {
				t.Fatalf("expected empty category for the viewed agenda, got %q", category)
			}
			return core.MutationResult{Kind: core.MutationDelete, Status: core.MutationFailed, EventID: id, StatusCode: 500}
		},
	}

	err := NewEditEventCommand(agenda).Execute(context.Background(), EditEventMessage{ID: " evt-1 ", Form: validForm()})
	if !core.HasTextCode(err, core.ErrorCalendarEventNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	err = NewDeleteEventCommand(agenda).Execute(context.Background(), DeleteEventMessage{ID: "evt-2"})
	if !core.HasTextCode(err, core.ErrorCalendarMutationFailed) {
		t.Fatalf("expected mutation failure, got %v", err)
	}
}

func TestViewCommands_DelegateToAgenda(t *testing.T) {
	var gotFilter core.DateFilter
	posted := false
	agenda := stubAgenda{
		setCategoryFn: func(_ context.Context, category core.Category) (bosync.Snapshot, error) {
			return bosync.Snapshot{Category: category}, nil
		},
		setDateFilterFn: func(_ context.Context, filter core.DateFilter) bosync.Snapshot {
			gotFilter = filter
			return bosync.Snapshot{Filter: filter}
		},
		refreshPostFn: func(context.Context) bosync.Snapshot {
			posted = true
			return bosync.Snapshot{}
		},
	}

	collector := gocmd.NewResult[bosync.Snapshot]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewSetCategoryCommand(agenda).Execute(ctx, SetCategoryMessage{Category: core.CategoryVenda}); err != nil {
		t.Fatalf("set category: %v", err)
	}
	if snapshot, _ := collector.Load(); snapshot.Category != core.CategoryVenda {
		t.Fatalf("expected venda snapshot, got %#v", snapshot)
	}

	if err := NewSetDateFilterCommand(agenda).Execute(context.Background(), SetDateFilterMessage{Date: "2024-06-01"}); err != nil {
		t.Fatalf("set date filter: %v", err)
	}
	if gotFilter.Date != "2024-06-01" {
		t.Fatalf("unexpected filter %#v", gotFilter)
	}
	if err := NewSetDateFilterCommand(agenda).Execute(context.Background(), SetDateFilterMessage{Date: "06/01/2024"}); err == nil {
		t.Fatalf("expected malformed date to fail")
	}

	if err := NewRefreshAgendaCommand(agenda).Execute(context.Background(), RefreshAgendaMessage{ViaPost: true}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !posted {
		t.Fatalf("expected POST refresh")
	}
}

func TestEndpointCommands(t *testing.T) {
	service := &stubEndpoints{}
	overrides := map[core.OperationKey]string{core.OperationPauseBot: "https://x/pause"}
	if err := NewSaveEndpointsCommand(service).Execute(context.Background(), SaveEndpointsMessage{Overrides: overrides}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if service.saved[core.OperationPauseBot] != "https://x/pause" {
		t.Fatalf("expected overrides to be forwarded, got %#v", service.saved)
	}
	if err := NewReloadEndpointsCommand(service).Execute(context.Background(), ReloadEndpointsMessage{}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if service.reloaded != 1 {
		t.Fatalf("expected one reload, got %d", service.reloaded)
	}
	service.err = errors.New("store down")
	if err := NewReloadEndpointsCommand(service).Execute(context.Background(), ReloadEndpointsMessage{}); err == nil {
		t.Fatalf("expected reload error to propagate")
	}
}

func TestDeliverIntegrationCommand(t *testing.T) {
	deliverer := &stubDeliverer{}
	collector := gocmd.NewResult[webhooks.Report]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := DeliverIntegrationMessage{Operation: core.OperationStartBot, Payload: json.RawMessage(`{"phoneNumber":"5511987654321@s.whatsapp.net"}`)}
	if err := NewDeliverIntegrationCommand(deliverer).Execute(ctx, msg); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if deliverer.key != core.OperationStartBot {
		t.Fatalf("unexpected key %q", deliverer.key)
	}
	if raw, ok := deliverer.payload.(json.RawMessage); !ok || string(raw) != string(msg.Payload) {
		t.Fatalf("expected raw payload to be forwarded, got %#v", deliverer.payload)
	}
	if report, ok := collector.Load(); !ok || !report.Success {
		t.Fatalf("expected stored report, got %#v", report)
	}

	deliverer.err = errors.New("exhausted")
	if err := NewDeliverIntegrationCommand(deliverer).Execute(context.Background(), DeliverIntegrationMessage{Operation: core.OperationClearRAG}); err == nil {
		t.Fatalf("expected delivery error")
	}
	if deliverer.payload != nil {
		t.Fatalf("expected nil payload for empty message, got %#v", deliverer.payload)
	}
}

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
		ok   bool
	}{
		{name: "add valid", msg: AddEventMessage{Form: validForm()}, ok: true},
		{name: "add missing summary", msg: AddEventMessage{Form: core.EventForm{Date: "2024-06-01", StartTime: "09:00", EndTime: "10:00"}}},
		{name: "edit missing id", msg: EditEventMessage{Form: validForm()}},
		{name: "add unknown category", msg: AddEventMessage{Category: "outra", Form: validForm()}},
		{name: "delete unknown category", msg: DeleteEventMessage{Category: "outra", ID: "evt-1"}},
		{name: "edit explicit category", msg: EditEventMessage{Category: core.CategoryVenda, ID: "evt-1", Form: validForm()}, ok: true},
		{name: "unknown category", msg: SetCategoryMessage{Category: "outra"}},
		{name: "known category", msg: SetCategoryMessage{Category: core.CategoryMentoria}, ok: true},
		{name: "clear date filter", msg: SetDateFilterMessage{}, ok: true},
		{name: "empty overrides", msg: SaveEndpointsMessage{}},
		{name: "unknown override", msg: SaveEndpointsMessage{Overrides: map[core.OperationKey]string{"nope": "https://x"}}},
		{name: "agenda integration", msg: DeliverIntegrationMessage{Operation: core.OperationAgendaAdd}},
		{name: "bad payload", msg: DeliverIntegrationMessage{Operation: core.OperationConfirm, Payload: json.RawMessage(`{`)}},
		{name: "integration", msg: DeliverIntegrationMessage{Operation: core.OperationConfirm}, ok: true},
	}
	for _, tc := range cases {
		err := tc.msg.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
