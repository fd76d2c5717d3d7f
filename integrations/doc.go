// Package integrations wraps the automation webhooks that sit outside the
// calendar: bot pause and resume, operator messages, RAG ingestion, WhatsApp
// instance provisioning, CRM users and agent settings. It also carries the
// Brazilian phone and document helpers those payloads depend on.
package integrations
