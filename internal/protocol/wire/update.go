// Package wire defines the transport message shapes exchanged with the host:
// inbound update envelopes, outbound decision frames, and the pairing/relay
// HTTP bodies. Shapes are transport-neutral; the streaming and polling
// transports carry the same envelopes.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// Update type strings carried in UpdateEnvelope.Type.
const (
	// UpdateActionProposed delivers a new pending action.
	UpdateActionProposed = "actionProposed"
	// UpdateActionWithdrawn retracts a previously proposed action.
	UpdateActionWithdrawn = "actionWithdrawn"
	// UpdateProgress replaces the progress side-channel.
	UpdateProgress = "progressUpdate"
	// UpdateQuestion sets the active host question.
	UpdateQuestion = "question"
	// UpdateContextWarning sets the context-budget warning.
	UpdateContextWarning = "contextWarning"
	// UpdateStatusChanged sets the session status.
	UpdateStatusChanged = "statusChanged"
	// UpdateModeChanged sets the host permission mode.
	UpdateModeChanged = "modeChanged"
	// UpdateInterruptAck acknowledges a stop/resume request.
	UpdateInterruptAck = "interruptAck"
	// UpdateSnapshot replaces the whole session aggregate (reconnect re-sync).
	UpdateSnapshot = "snapshot"
	// UpdateSessionEnded terminates the session.
	UpdateSessionEnded = "sessionEnded"
)

// UpdateEnvelope is one inbound host event.
type UpdateEnvelope struct {
	// Type selects the payload shape.
	Type string `json:"type"`
	// Payload is the type-specific body.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ActionWithdrawnPayload is the payload of an actionWithdrawn update.
type ActionWithdrawnPayload struct {
	// ActionID is the withdrawn action's id.
	ActionID string `json:"actionId"`
}

// StatusChangedPayload is the payload of a statusChanged update.
type StatusChangedPayload struct {
	// Status is the new session status.
	Status types.SessionStatus `json:"status"`
}

// ModeChangedPayload is the payload of a modeChanged update.
type ModeChangedPayload struct {
	// Mode is the new permission mode.
	Mode types.SessionMode `json:"mode"`
}

// InterruptAckPayload is the payload of an interruptAck update.
type InterruptAckPayload struct {
	// Interrupted is the host-confirmed interrupt flag.
	Interrupted bool `json:"interrupted"`
}

// SessionEndedPayload is the payload of a sessionEnded update.
type SessionEndedPayload struct {
	// Status is the terminal session status ("completed" or "failed").
	Status types.SessionStatus `json:"status"`
	// Reason is an optional human-readable cause.
	Reason string `json:"reason,omitempty"`
}

// ParseUpdateEnvelope converts a decoded transport value (typically a
// map[string]any from socket.io) into an UpdateEnvelope.
func ParseUpdateEnvelope(v any) (*UpdateEnvelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var env UpdateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, fmt.Errorf("update missing type")
	}
	return &env, nil
}

// DecodeAction decodes an actionProposed payload.
func (e *UpdateEnvelope) DecodeAction() (types.PendingAction, error) {
	var action types.PendingAction
	if err := e.decode(&action); err != nil {
		return types.PendingAction{}, err
	}
	if action.ID == "" {
		return types.PendingAction{}, fmt.Errorf("actionProposed missing id")
	}
	return action, nil
}

// DecodeActionWithdrawn decodes an actionWithdrawn payload.
func (e *UpdateEnvelope) DecodeActionWithdrawn() (ActionWithdrawnPayload, error) {
	var payload ActionWithdrawnPayload
	if err := e.decode(&payload); err != nil {
		return ActionWithdrawnPayload{}, err
	}
	if payload.ActionID == "" {
		return ActionWithdrawnPayload{}, fmt.Errorf("actionWithdrawn missing actionId")
	}
	return payload, nil
}

// DecodeProgress decodes a progressUpdate payload.
func (e *UpdateEnvelope) DecodeProgress() (types.SessionProgress, error) {
	var progress types.SessionProgress
	if err := e.decode(&progress); err != nil {
		return types.SessionProgress{}, err
	}
	return progress, nil
}

// DecodeQuestion decodes a question payload.
func (e *UpdateEnvelope) DecodeQuestion() (types.Question, error) {
	var question types.Question
	if err := e.decode(&question); err != nil {
		return types.Question{}, err
	}
	if question.ID == "" {
		return types.Question{}, fmt.Errorf("question missing id")
	}
	return question, nil
}

// DecodeContextWarning decodes a contextWarning payload.
func (e *UpdateEnvelope) DecodeContextWarning() (types.ContextWarning, error) {
	var warning types.ContextWarning
	if err := e.decode(&warning); err != nil {
		return types.ContextWarning{}, err
	}
	return warning, nil
}

// DecodeStatusChanged decodes a statusChanged payload.
func (e *UpdateEnvelope) DecodeStatusChanged() (StatusChangedPayload, error) {
	var payload StatusChangedPayload
	if err := e.decode(&payload); err != nil {
		return StatusChangedPayload{}, err
	}
	if payload.Status == "" {
		return StatusChangedPayload{}, fmt.Errorf("statusChanged missing status")
	}
	return payload, nil
}

// DecodeModeChanged decodes a modeChanged payload.
func (e *UpdateEnvelope) DecodeModeChanged() (ModeChangedPayload, error) {
	var payload ModeChangedPayload
	if err := e.decode(&payload); err != nil {
		return ModeChangedPayload{}, err
	}
	if payload.Mode == "" {
		return ModeChangedPayload{}, fmt.Errorf("modeChanged missing mode")
	}
	return payload, nil
}

// DecodeInterruptAck decodes an interruptAck payload.
func (e *UpdateEnvelope) DecodeInterruptAck() (InterruptAckPayload, error) {
	var payload InterruptAckPayload
	if err := e.decode(&payload); err != nil {
		return InterruptAckPayload{}, err
	}
	return payload, nil
}

// DecodeSnapshot decodes a snapshot payload.
func (e *UpdateEnvelope) DecodeSnapshot() (types.SessionState, error) {
	var state types.SessionState
	if err := e.decode(&state); err != nil {
		return types.SessionState{}, err
	}
	return state, nil
}

// DecodeSessionEnded decodes a sessionEnded payload.
func (e *UpdateEnvelope) DecodeSessionEnded() (SessionEndedPayload, error) {
	var payload SessionEndedPayload
	if err := e.decode(&payload); err != nil {
		return SessionEndedPayload{}, err
	}
	if payload.Status == "" {
		payload.Status = types.StatusCompleted
	}
	return payload, nil
}

func (e *UpdateEnvelope) decode(target any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("%s payload: %w", e.Type, err)
	}
	return nil
}
