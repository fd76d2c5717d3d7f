package integrations

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/webhooks"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const pauseUnitSeconds = "seconds"

// Deliverer is the slice of the webhook dispatcher the client needs.
type Deliverer interface {
	DeliverOperation(
		ctx context.Context,
		key core.OperationKey,
		category core.Category,
		payload any,
		opts ...webhooks.DeliverOption,
	) webhooks.Report
}

type ClientOption func(*Client)

func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithDeliverOptions(opts ...webhooks.DeliverOption) ClientOption {
	return func(c *Client) {
		c.deliverOpts = append(c.deliverOpts, opts...)
	}
}

// Client sends the fire-and-forget integration calls: bot control, RAG
// ingestion, WhatsApp instance management, CRM users and agent settings.
type Client struct {
	deliverer   Deliverer
	logger      core.Logger
	deliverOpts []webhooks.DeliverOption
}

func NewClient(deliverer Deliverer, opts ...ClientOption) *Client {
	c := &Client{deliverer: deliverer, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type PausePayload struct {
	PhoneNumber string `json:"phoneNumber"`
	Duration    *int   `json:"duration"`
	Unit        string `json:"unit"`
}

type StartPayload struct {
	PhoneNumber string `json:"phoneNumber"`
}

type MessagePayload struct {
	Phone         string `json:"phone"`
	Message       string `json:"message"`
	PauseDuration int    `json:"pauseDuration"`
}

type RAGDocument struct {
	FileName string `json:"fileName"`
	Category string `json:"category,omitempty"`
	Content  []byte `json:"-"`
}

type ragUpload struct {
	FileName string `json:"fileName"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`
}

type InstancePayload struct {
	InstanceName string `json:"instanceName"`
	WebhookPath  string `json:"webhookPath,omitempty"`
}

type editUserPayload struct {
	Contact
	ID string `json:"id"`
}

// SendMessage posts an operator message to the chat and pauses the bot for
// pauseSeconds.
func (c *Client) SendMessage(ctx context.Context, phone string, message string, pauseSeconds int) (webhooks.Report, error) {
	chat := FormatWhatsAppPhone(phone)
	if chat == "" {
		return webhooks.Report{}, core.NewValidationError("phone", "phone is required")
	}
	if strings.TrimSpace(message) == "" {
		return webhooks.Report{}, core.NewValidationError("message", "message is required")
	}
	if pauseSeconds < 0 {
		pauseSeconds = 0
	}
	return c.deliver(ctx, core.OperationMessage, MessagePayload{
		Phone:         chat,
		Message:       message,
		PauseDuration: pauseSeconds,
	})
}

// PauseBot pauses the bot for a chat. A nil duration pauses indefinitely.
func (c *Client) PauseBot(ctx context.Context, phone string, seconds *int) (webhooks.Report, error) {
	chat := FormatWhatsAppPhone(phone)
	if chat == "" {
		return webhooks.Report{}, core.NewValidationError("phone", "phone is required")
	}
	if seconds != nil && *seconds <= 0 {
		return webhooks.Report{}, core.NewValidationError("duration", "duration must be positive")
	}
	return c.deliver(ctx, core.OperationPauseBot, PausePayload{
		PhoneNumber: chat,
		Duration:    seconds,
		Unit:        pauseUnitSeconds,
	})
}

func (c *Client) StartBot(ctx context.Context, phone string) (webhooks.Report, error) {
	chat := FormatWhatsAppPhone(phone)
	if chat == "" {
		return webhooks.Report{}, core.NewValidationError("phone", "phone is required")
	}
	return c.deliver(ctx, core.OperationStartBot, StartPayload{PhoneNumber: chat})
}

func (c *Client) Confirm(ctx context.Context, payload map[string]any) (webhooks.Report, error) {
	return c.deliver(ctx, core.OperationConfirm, payloadOrEmpty(payload))
}

func (c *Client) DeleteRAGFile(ctx context.Context, title string) (webhooks.Report, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return webhooks.Report{}, core.NewValidationError("titulo", "title is required")
	}
	return c.deliver(ctx, core.OperationDeleteRAG, map[string]string{"titulo": title})
}

// ClearRAG wipes the whole knowledge base.
func (c *Client) ClearRAG(ctx context.Context) (webhooks.Report, error) {
	return c.deliver(ctx, core.OperationClearRAG, map[string]any{})
}

// SendRAGDocument uploads a document with its bytes base64 encoded in the
// JSON body.
func (c *Client) SendRAGDocument(ctx context.Context, doc RAGDocument) (webhooks.Report, error) {
	name := strings.TrimSpace(doc.FileName)
	if name == "" {
		return webhooks.Report{}, core.NewValidationError("fileName", "file name is required")
	}
	if len(doc.Content) == 0 {
		return webhooks.Report{}, core.NewValidationError("content", "document is empty")
	}
	return c.deliver(ctx, core.OperationSendRAG, ragUpload{
		FileName: name,
		Category: strings.TrimSpace(doc.Category),
		Content:  base64.StdEncoding.EncodeToString(doc.Content),
	})
}

func (c *Client) CreateInstance(ctx context.Context, instance string, webhookPath string) (webhooks.Report, error) {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return webhooks.Report{}, core.NewValidationError("instanceName", "instance name is required")
	}
	return c.deliver(ctx, core.OperationInstance, InstancePayload{
		InstanceName: instance,
		WebhookPath:  strings.TrimSpace(webhookPath),
	})
}

func (c *Client) RefreshQRCode(ctx context.Context, instance string) (webhooks.Report, error) {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return webhooks.Report{}, core.NewValidationError("instanceName", "instance name is required")
	}
	return c.deliver(ctx, core.OperationRefreshQR, InstancePayload{InstanceName: instance})
}

// CreateUser validates and normalizes contact, assigning an id when missing.
func (c *Client) CreateUser(ctx context.Context, contact Contact) (Contact, webhooks.Report, error) {
	if err := contact.Validate(); err != nil {
		return Contact{}, webhooks.Report{}, err
	}
	contact = contact.Normalized()
	if strings.TrimSpace(contact.ID) == "" {
		contact.ID = NewContactID()
	}
	report, err := c.deliver(ctx, core.OperationCreateUser, contact)
	return contact, report, err
}

func (c *Client) EditUser(ctx context.Context, id string, contact Contact) (webhooks.Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return webhooks.Report{}, core.NewValidationError("id", "id is required")
	}
	if err := contact.Validate(); err != nil {
		return webhooks.Report{}, err
	}
	contact = contact.Normalized()
	contact.ID = ""
	return c.deliver(ctx, core.OperationEditUser, editUserPayload{Contact: contact, ID: id})
}

func (c *Client) DeleteUser(ctx context.Context, phone string) (webhooks.Report, error) {
	chat := FormatWhatsAppPhone(phone)
	if chat == "" {
		return webhooks.Report{}, core.NewValidationError("phone", "phone is required")
	}
	return c.deliver(ctx, core.OperationDeleteUser, map[string]string{"phone": chat})
}

func (c *Client) ConfigureAgent(ctx context.Context, settings map[string]any) (webhooks.Report, error) {
	if len(settings) == 0 {
		return webhooks.Report{}, core.NewValidationError("settings", "agent settings are required")
	}
	return c.deliver(ctx, core.OperationConfigAgent, settings)
}

// Deliver sends an already built payload for key. Queue workers use it to
// replay enqueued calls.
func (c *Client) Deliver(ctx context.Context, key core.OperationKey, payload any) (webhooks.Report, error) {
	if !core.KnownKey(key) {
		return webhooks.Report{}, core.NewError(
			fmt.Sprintf("integrations: unknown operation %q", key),
			goerrors.CategoryValidation,
			core.ErrorEndpointUnknown,
			map[string]any{"operation": string(key)},
		)
	}
	return c.deliver(ctx, key, payload)
}

func (c *Client) deliver(ctx context.Context, key core.OperationKey, payload any) (webhooks.Report, error) {
	if c == nil || c.deliverer == nil {
		return webhooks.Report{Operation: key}, core.NewError(
			"integrations: dispatcher is not configured",
			goerrors.CategoryInternal,
			core.ErrorInternal,
			nil,
		)
	}
	report := c.deliverer.DeliverOperation(ctx, key, "", payload, c.deliverOpts...)
	if report.Success {
		return report, nil
	}
	c.logger.Warn("integration call failed",
		"operation", string(key),
		"url", report.URL,
		"attempts", len(report.Attempts),
		"error", report.LastError,
	)
	err := report.LastError
	if err == nil {
		err = fmt.Errorf("integrations: %s delivery failed", key)
	}
	return report, err
}

func payloadOrEmpty(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	return payload
}
