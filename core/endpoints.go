package core

import (
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultWebhookBase is the origin every built-in endpoint hangs off.
const DefaultWebhookBase = "https://endpoint.comunidadeimobiliaria.com.br/webhook"

type OperationKey string

const (
	OperationMessage     OperationKey = "mensagem"
	OperationPauseBot    OperationKey = "pausaBot"
	OperationStartBot    OperationKey = "iniciaBot"
	OperationConfirm     OperationKey = "confirma"
	OperationAgenda      OperationKey = "agenda"
	OperationAgendaAdd   OperationKey = "agendaAdicionar"
	OperationAgendaEdit  OperationKey = "agendaAlterar"
	OperationAgendaDel   OperationKey = "agendaExcluir"
	OperationSendRAG     OperationKey = "enviaRag"
	OperationDeleteRAG   OperationKey = "excluirArquivoRag"
	OperationClearRAG    OperationKey = "excluirRag"
	OperationInstance    OperationKey = "instanciaEvolution"
	OperationRefreshQR   OperationKey = "atualizarQrCode"
	OperationCreateUser  OperationKey = "criaUsuario"
	OperationEditUser    OperationKey = "editaUsuario"
	OperationDeleteUser  OperationKey = "excluiUsuario"
	OperationConfigAgent OperationKey = "configAgent"
)

func (k OperationKey) String() string {
	return string(k)
}

// Category selects one of the independent agendas. Each category owns a
// parallel set of calendar endpoints.
type Category string

const (
	CategoryMentoria Category = "mentoria-ci"
	CategoryVenda    Category = "venda-ci"
)

const DefaultCategory = CategoryMentoria

var categorySuffixes = map[Category]string{
	CategoryMentoria: "MentoriaCi",
	CategoryVenda:    "VendaCi",
}

func (c Category) String() string {
	return string(c)
}

// Suffix returns the camel-case token appended to category sensitive
// operation keys, or "" for unknown categories.
func (c Category) Suffix() string {
	return categorySuffixes[c]
}

func (c Category) Valid() bool {
	_, ok := categorySuffixes[c]
	return ok
}

func Categories() []Category {
	return []Category{CategoryMentoria, CategoryVenda}
}

func ParseCategory(value string) (Category, error) {
	category := Category(strings.TrimSpace(strings.ToLower(value)))
	if category == "" {
		return DefaultCategory, nil
	}
	if !category.Valid() {
		return "", NewError(
			"core: unknown agenda category "+value,
			goerrors.CategoryBadInput,
			ErrorBadInput,
			map[string]any{"category": value},
		)
	}
	return category, nil
}

// QualifiedKey builds the {operation}{Suffix} key used for category specific
// overrides and defaults.
func QualifiedKey(key OperationKey, category Category) OperationKey {
	suffix := category.Suffix()
	if suffix == "" {
		return key
	}
	return OperationKey(string(key) + suffix)
}

var categorySensitiveOperations = map[OperationKey]struct{}{
	OperationAgenda:     {},
	OperationAgendaAdd:  {},
	OperationAgendaEdit: {},
	OperationAgendaDel:  {},
}

// CategorySensitive reports whether the operation is always resolved through
// an agenda category.
func CategorySensitive(key OperationKey) bool {
	_, ok := categorySensitiveOperations[key]
	return ok
}

var defaultEndpoints = map[OperationKey]string{
	OperationMessage:            DefaultWebhookBase + "/envia_mensagem",
	OperationPauseBot:           DefaultWebhookBase + "/pausa_bot",
	OperationStartBot:           DefaultWebhookBase + "/inicia_bot",
	OperationConfirm:            DefaultWebhookBase + "/confirma",
	OperationAgenda:             DefaultWebhookBase + "/agenda",
	"agendaMentoriaCi":          DefaultWebhookBase + "/agenda/mentoria-ci",
	"agendaVendaCi":             DefaultWebhookBase + "/agenda/venda-ci",
	OperationAgendaEdit:         DefaultWebhookBase + "/agenda/alterar",
	"agendaAdicionarMentoriaCi": DefaultWebhookBase + "/agenda/adicionar/mentoria-ci",
	"agendaAdicionarVendaCi":    DefaultWebhookBase + "/agenda/adicionar/venda-ci",
	"agendaAlterarMentoriaCi":   DefaultWebhookBase + "/agenda/alterar/mentoria-ci",
	"agendaAlterarVendaCi":      DefaultWebhookBase + "/agenda/alterar/venda-ci",
	OperationAgendaAdd:          DefaultWebhookBase + "/agenda/adicionar",
	OperationAgendaDel:          DefaultWebhookBase + "/agenda/excluir",
	"agendaExcluirMentoriaCi":   DefaultWebhookBase + "/agenda/excluir/mentoria-ci",
	"agendaExcluirVendaCi":      DefaultWebhookBase + "/agenda/excluir/venda-ci",
	OperationSendRAG:            DefaultWebhookBase + "/envia_rag",
	OperationDeleteRAG:          DefaultWebhookBase + "/excluir-arquivo-rag",
	OperationClearRAG:           DefaultWebhookBase + "/excluir-rag",
	OperationInstance:           DefaultWebhookBase + "/instanciaevolution",
	OperationRefreshQR:          DefaultWebhookBase + "/atualizar-qr-code",
	OperationCreateUser:         DefaultWebhookBase + "/cria_usuario",
	OperationEditUser:           DefaultWebhookBase + "/edita_usuario",
	OperationDeleteUser:         DefaultWebhookBase + "/exclui_usuario",
	OperationConfigAgent:        DefaultWebhookBase + "/config_agent",
}

// DefaultEndpoints returns a copy of the built-in endpoint table.
func DefaultEndpoints() map[OperationKey]string {
	out := make(map[OperationKey]string, len(defaultEndpoints))
	for key, value := range defaultEndpoints {
		out[key] = value
	}
	return out
}

// KnownKey reports whether key is part of the fixed endpoint table.
func KnownKey(key OperationKey) bool {
	_, ok := defaultEndpoints[key]
	return ok
}

// KnownKeys returns every endpoint key in lexical order.
func KnownKeys() []OperationKey {
	keys := make([]OperationKey, 0, len(defaultEndpoints))
	for key := range defaultEndpoints {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

type EndpointField struct {
	Key   OperationKey `json:"key"`
	Label string       `json:"label"`
}

type EndpointGroup struct {
	Name   string          `json:"name"`
	Fields []EndpointField `json:"fields"`
}

var endpointGroups = []EndpointGroup{
	{Name: "Configuração da Agenda", Fields: []EndpointField{
		{Key: OperationAgenda, Label: "URL Base da Agenda"},
		{Key: "agendaMentoriaCi", Label: "URL Agenda Mentoria CI"},
		{Key: "agendaVendaCi", Label: "URL Agenda Venda CI"},
		{Key: OperationAgendaAdd, Label: "Adicionar Evento (Geral)"},
		{Key: "agendaAdicionarMentoriaCi", Label: "Adicionar Evento Mentoria CI"},
		{Key: "agendaAdicionarVendaCi", Label: "Adicionar Evento Venda CI"},
		{Key: OperationAgendaEdit, Label: "Alterar Evento (Geral)"},
		{Key: "agendaAlterarMentoriaCi", Label: "Alterar Evento Mentoria CI"},
		{Key: "agendaAlterarVendaCi", Label: "Alterar Evento Venda CI"},
		{Key: OperationAgendaDel, Label: "Excluir Evento (Geral)"},
		{Key: "agendaExcluirMentoriaCi", Label: "Excluir Evento Mentoria CI"},
		{Key: "agendaExcluirVendaCi", Label: "Excluir Evento Venda CI"},
	}},
	{Name: "Configuração do Bot", Fields: []EndpointField{
		{Key: OperationMessage, Label: "Enviar Mensagem"},
		{Key: OperationPauseBot, Label: "Pausar Bot"},
		{Key: OperationStartBot, Label: "Iniciar Bot"},
		{Key: OperationConfirm, Label: "Confirmar"},
	}},
	{Name: "Configuração RAG", Fields: []EndpointField{
		{Key: OperationSendRAG, Label: "Enviar RAG"},
		{Key: OperationDeleteRAG, Label: "Excluir Arquivo RAG"},
		{Key: OperationClearRAG, Label: "Excluir RAG"},
	}},
	{Name: "Configuração Evolution", Fields: []EndpointField{
		{Key: OperationInstance, Label: "Instância Evolution"},
		{Key: OperationRefreshQR, Label: "Atualizar QR Code"},
	}},
	{Name: "Gerenciamento de Usuários", Fields: []EndpointField{
		{Key: OperationCreateUser, Label: "Criar Usuário"},
		{Key: OperationEditUser, Label: "Editar Usuário"},
		{Key: OperationDeleteUser, Label: "Excluir Usuário"},
	}},
	{Name: "Configuração do Agente", Fields: []EndpointField{
		{Key: OperationConfigAgent, Label: "Configurar Agente"},
	}},
}

// EndpointGroups returns the configuration screen layout.
func EndpointGroups() []EndpointGroup {
	out := make([]EndpointGroup, 0, len(endpointGroups))
	for _, group := range endpointGroups {
		out = append(out, EndpointGroup{
			Name:   group.Name,
			Fields: append([]EndpointField(nil), group.Fields...),
		})
	}
	return out
}
