// Package events defines the two typed events the worker emits (spec.md
// §4.10) and the fire-and-forget emitter interface the transport layer
// implements.
package events

// StatusPhase names a point in the worker's tick the UI can show progress
// for.
type StatusPhase string

const (
	PhaseTrustNetwork     StatusPhase = "trust_network"
	PhaseHistoricalFetch  StatusPhase = "historical_fetch"
	PhaseConnectionHistory StatusPhase = "connection_history"
	PhaseClassifying      StatusPhase = "classifying"
	PhaseDistilling       StatusPhase = "distilling"
	PhaseRebuilding       StatusPhase = "rebuilding"
)

// Status is the sync:status payload.
type Status struct {
	Phase   StatusPhase `json:"phase"`
	Message string      `json:"message"`
}

// ConversationsUpdated is the sync:conversations-updated payload, published
// after every conversation rebuild.
type ConversationsUpdated struct {
	AccountID string `json:"account_id"`
	Count     int    `json:"count"`
}

// Emitter is implemented by whatever transport the UI uses. Emission is
// fire-and-forget: the worker never waits on or retries a failed emit.
type Emitter interface {
	EmitStatus(Status)
	EmitConversationsUpdated(ConversationsUpdated)
}

// NoopEmitter discards every event, used when no transport is wired (tests,
// headless runs).
type NoopEmitter struct{}

func (NoopEmitter) EmitStatus(Status)                             {}
func (NoopEmitter) EmitConversationsUpdated(ConversationsUpdated) {}
