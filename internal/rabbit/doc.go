// Package rabbit implements the broker gateway: durable transport between
// notification creation and notification processing, decoupled in time and
// failure domain from the HTTP request path.
//
// Topology: a topic exchange with a durable main queue bound by routing key.
// The main queue is configured with a dead-letter exchange, a dead-letter
// routing key, and a per-message TTL, so a message that is neither
// acknowledged nor consumed within the TTL is dead-lettered. A durable
// dead-letter queue is bound to the dead-letter exchange.
//
// The gateway holds one long-lived connection injected at startup; channels
// are acquired per publish/consume operation and released on all exit paths.
package rabbit
