// Package webhooks delivers JSON payloads to the operator's integration
// endpoints.
//
// Every delivery runs a bounded retry loop: each attempt carries its own
// deadline, a 2xx response ends the loop, and attempts are separated by a
// constant delay. The loop never returns an error; callers receive a boolean
// or a Report describing every attempt.
package webhooks
