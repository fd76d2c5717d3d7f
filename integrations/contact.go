package integrations

import (
	"strings"

	"github.com/goliatone/go-backoffice/core"
	"github.com/google/uuid"
)

const (
	ContactStatusActive   = "active"
	ContactStatusInactive = "inactive"
)

// Contact is a CRM client record as the user webhooks expect it.
type Contact struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone"`
	Address   string `json:"address,omitempty"`
	CPFCNPJ   string `json:"cpfCnpj,omitempty"`
	Status    string `json:"status,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CRECI     string `json:"creci,omitempty"`
	CEP       string `json:"cep,omitempty"`
	City      string `json:"cidade,omitempty"`
	SessionID string `json:"sessionid,omitempty"`
	Instance  string `json:"instancia,omitempty"`
}

// Validate requires name and phone and checks the optional email and
// document fields when present.
func (c Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return core.NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return core.NewValidationError("phone", "phone is required")
	}
	if !ValidPhone(c.Phone) {
		return core.NewValidationError("phone", "phone must have between 10 and 13 digits")
	}
	if email := strings.TrimSpace(c.Email); email != "" && !ValidEmail(email) {
		return core.NewValidationError("email", "email is invalid")
	}
	if doc := strings.TrimSpace(c.CPFCNPJ); doc != "" && !ValidDocument(doc) {
		return core.NewValidationError("cpfCnpj", "cpf or cnpj is invalid")
	}
	return nil
}

// Normalized trims fields, fills the status and turns the phone into a chat id.
func (c Contact) Normalized() Contact {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = FormatWhatsAppPhone(c.Phone)
	c.CPFCNPJ = digitsOnly(c.CPFCNPJ)
	if strings.TrimSpace(c.Status) == "" {
		c.Status = ContactStatusActive
	}
	return c
}

func NewContactID() string {
	return uuid.NewString()
}
