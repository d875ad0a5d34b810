package actor

import (
	"fmt"

	framework "github.com/fotescodev/claude-watch/cli/internal/actor"
	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// Approve returns a command input that approves a single pending action. The
// reducer refuses it with ErrPolicyViolation when the action's tier may not
// be approved from the watch. If reply is non-nil it receives the outcome.
func Approve(actionID string, reply chan error) framework.Input {
	return cmdApprove{ID: actionID, Reply: reply}
}

// Reject returns a command input that rejects a single pending action. Any
// tier may be rejected.
func Reject(actionID string, reply chan error) framework.Input {
	return cmdReject{ID: actionID, Reply: reply}
}

// ApproveAll returns a command input that approves every pending action
// atomically. When any pending action is High tier the reply receives a
// *PolicyViolationError carrying the ineligible count and nothing changes.
func ApproveAll(reply chan error) framework.Input {
	return cmdApproveAll{Reply: reply}
}

// RejectAll returns a command input that rejects every pending action.
func RejectAll(reply chan error) framework.Input {
	return cmdRejectAll{Reply: reply}
}

// RemindLater returns a command input that drops an action from the visible
// queue without recording any decision.
func RemindLater(actionID string, reply chan error) framework.Input {
	return cmdRemindLater{ID: actionID, Reply: reply}
}

// Gesture returns a command input that resolves the quick double-tap
// shortcut for one action: approve for Low/Medium, reject for High. The
// asymmetry is the one mechanism keeping a reflexive gesture from approving
// a destructive action; call sites must not re-derive it.
func Gesture(actionID string, reply chan GestureOutcome) framework.Input {
	return cmdGesture{ID: actionID, Reply: reply}
}

// AnswerQuestion returns a command input that answers the pending host
// question. handleOnMac defers the question to the host instead of answering;
// the answer is dropped in that case.
func AnswerQuestion(questionID string, answer *string, handleOnMac bool, reply chan error) framework.Input {
	return cmdAnswerQuestion{
		QuestionID:  questionID,
		Answer:      answer,
		HandleOnMac: handleOnMac,
		Reply:       reply,
	}
}

// Interrupt returns a command input that asks the host to stop or resume the
// agent. Repeating the current direction is an idempotent no-op.
func Interrupt(action types.InterruptAction, reply chan error) framework.Input {
	return cmdInterrupt{Action: action, Reply: reply}
}

// Mutate returns a command input that applies transform to a deep copy of the
// session aggregate on the actor loop. A transform that introduces duplicate
// pending action ids is refused with ErrPolicyViolation.
func Mutate(transform func(*types.SessionState), reply chan error) framework.Input {
	return cmdMutate{Transform: transform, Reply: reply}
}

// ActionProposed returns an event input for a newly proposed host action.
func ActionProposed(action types.PendingAction) framework.Input {
	return evActionProposed{Action: action}
}

// ActionWithdrawn returns an event input retracting a proposed action.
func ActionWithdrawn(actionID string) framework.Input {
	return evActionWithdrawn{ID: actionID}
}

// ProgressUpdated returns an event input replacing the progress side-channel.
func ProgressUpdated(progress types.SessionProgress) framework.Input {
	return evProgressUpdated{Progress: progress}
}

// QuestionAsked returns an event input setting the active host question.
func QuestionAsked(question types.Question) framework.Input {
	return evQuestionAsked{Question: question}
}

// ContextWarningRaised returns an event input recording a context warning.
func ContextWarningRaised(warning types.ContextWarning) framework.Input {
	return evContextWarning{Warning: warning}
}

// StatusChanged returns an event input applying a host status change.
func StatusChanged(status types.SessionStatus) framework.Input {
	return evStatusChanged{Status: status}
}

// ModeChanged returns an event input applying a host permission-mode change.
func ModeChanged(mode types.SessionMode) framework.Input {
	return evModeChanged{Mode: mode}
}

// InterruptAcked returns an event input reconciling the interrupt flag with
// the host's confirmation.
func InterruptAcked(interrupted bool) framework.Input {
	return evInterruptAck{Interrupted: interrupted}
}

// SnapshotReceived returns an event input replacing the whole aggregate with
// a host re-sync.
func SnapshotReceived(session types.SessionState) framework.Input {
	return evSnapshot{Session: session}
}

// SessionEnded returns an event input terminating the session.
func SessionEnded(status types.SessionStatus, reason string) framework.Input {
	return evSessionEnded{Status: status, Reason: reason}
}

// DeliveryFailed returns an event input reporting that an outbound frame of
// the given kind never reached the host.
func DeliveryFailed(kind string, err error) framework.Input {
	return evDeliveryFailed{Kind: kind, Err: err}
}

// InputFromUpdate converts a decoded host envelope into the session event it
// drives. Unknown types and malformed payloads yield an error; callers log
// and drop them, they are never fatal.
func InputFromUpdate(env *wire.UpdateEnvelope) (framework.Input, error) {
	if env == nil {
		return nil, fmt.Errorf("nil update envelope")
	}
	switch env.Type {
	case wire.UpdateActionProposed:
		action, err := env.DecodeAction()
		if err != nil {
			return nil, err
		}
		return ActionProposed(action), nil
	case wire.UpdateActionWithdrawn:
		payload, err := env.DecodeActionWithdrawn()
		if err != nil {
			return nil, err
		}
		return ActionWithdrawn(payload.ActionID), nil
	case wire.UpdateProgress:
		progress, err := env.DecodeProgress()
		if err != nil {
			return nil, err
		}
		return ProgressUpdated(progress), nil
	case wire.UpdateQuestion:
		question, err := env.DecodeQuestion()
		if err != nil {
			return nil, err
		}
		return QuestionAsked(question), nil
	case wire.UpdateContextWarning:
		warning, err := env.DecodeContextWarning()
		if err != nil {
			return nil, err
		}
		return ContextWarningRaised(warning), nil
	case wire.UpdateStatusChanged:
		payload, err := env.DecodeStatusChanged()
		if err != nil {
			return nil, err
		}
		return StatusChanged(payload.Status), nil
	case wire.UpdateModeChanged:
		payload, err := env.DecodeModeChanged()
		if err != nil {
			return nil, err
		}
		return ModeChanged(payload.Mode), nil
	case wire.UpdateInterruptAck:
		payload, err := env.DecodeInterruptAck()
		if err != nil {
			return nil, err
		}
		return InterruptAcked(payload.Interrupted), nil
	case wire.UpdateSnapshot:
		session, err := env.DecodeSnapshot()
		if err != nil {
			return nil, err
		}
		return SnapshotReceived(session), nil
	case wire.UpdateSessionEnded:
		payload, err := env.DecodeSessionEnded()
		if err != nil {
			return nil, err
		}
		return SessionEnded(payload.Status, payload.Reason), nil
	default:
		return nil, fmt.Errorf("unknown update type %q", env.Type)
	}
}
