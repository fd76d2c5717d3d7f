// Package core holds the back-office configuration, the endpoint table and
// resolver, shared domain types, and the error and observability helpers.
// Delivery, agenda and transport packages depend on core; core depends on
// none of them.
package core
