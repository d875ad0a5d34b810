package actor

import (
	"github.com/fotescodev/claude-watch/cli/internal/actor"
	"github.com/fotescodev/claude-watch/cli/internal/tier"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// State is the loop-owned session aggregate plus decision bookkeeping.
//
// The embedded types.SessionState is published verbatim as the lock-free
// snapshot, so reducers must treat its reference fields (queue slice, progress
// and question pointers) as immutable: replace, never mutate in place.
type State struct {
	// Session mirrors the host session.
	Session types.SessionState

	// Classifier assigns risk tiers to pending actions. Shared and stateless;
	// the reducer only reads it.
	Classifier *tier.Classifier

	// Duplicates counts actionProposed events dropped because their id was
	// already pending. Duplicate ids are a reported policy violation, never a
	// crash and never a queue change.
	Duplicates int

	// DeliveryFailures counts outbound frames that could not be delivered
	// after their optimistic local commit.
	DeliveryFailures int
}

// NewState returns the initial session state. A nil classifier falls back to
// the default denylist classifier.
func NewState(classifier *tier.Classifier) State {
	if classifier == nil {
		classifier = tier.NewClassifier()
	}
	return State{
		Session:    types.SessionState{Status: types.StatusIdle, Mode: types.ModeNormal},
		Classifier: classifier,
	}
}

// GestureOutcome reports which decision the quick double-tap gesture resolved
// to. Gesture is empty when the action was no longer pending (no-op).
type GestureOutcome struct {
	Gesture tier.Gesture
	Err     error
}

// Inputs

// Event is a marker interface for events consumed by the session reducer.
// Events are observations: host updates and runtime completions.
type Event interface {
	actor.Input
	isSessionEvent()
}

// Command is a marker interface for commands consumed by the session reducer.
// Commands are requests from the engine or presentation layer and may carry a
// reply channel, which is always completed non-blocking.
type Command interface {
	actor.Input
	isSessionCommand()
}

// cmdApprove approves a single pending action. Refused for High tier.
type cmdApprove struct {
	actor.InputBase
	ID    string
	Reply chan error
}

func (cmdApprove) isSessionCommand() {}

// cmdReject rejects a single pending action. Any tier may be rejected.
type cmdReject struct {
	actor.InputBase
	ID    string
	Reply chan error
}

func (cmdReject) isSessionCommand() {}

// cmdApproveAll approves every pending action atomically. If any pending
// action is High tier the whole batch is refused with the ineligible count.
type cmdApproveAll struct {
	actor.InputBase
	Reply chan error
}

func (cmdApproveAll) isSessionCommand() {}

// cmdRejectAll rejects every pending action atomically.
type cmdRejectAll struct {
	actor.InputBase
	Reply chan error
}

func (cmdRejectAll) isSessionCommand() {}

// cmdRemindLater drops an action from the visible queue without sending any
// decision. The host re-proposes it on its own schedule.
type cmdRemindLater struct {
	actor.InputBase
	ID    string
	Reply chan error
}

func (cmdRemindLater) isSessionCommand() {}

// cmdGesture resolves the quick double-tap shortcut for one action:
// approve for Low/Medium, reject for High.
type cmdGesture struct {
	actor.InputBase
	ID    string
	Reply chan GestureOutcome
}

func (cmdGesture) isSessionCommand() {}

// cmdAnswerQuestion answers or defers the pending host question.
type cmdAnswerQuestion struct {
	actor.InputBase
	QuestionID  string
	Answer      *string
	HandleOnMac bool
	Reply       chan error
}

func (cmdAnswerQuestion) isSessionCommand() {}

// cmdInterrupt asks the host to stop or resume the agent.
type cmdInterrupt struct {
	actor.InputBase
	Action types.InterruptAction
	Reply  chan error
}

func (cmdInterrupt) isSessionCommand() {}

// cmdMutate applies a caller-supplied transform to a deep copy of the session
// aggregate. The transform runs on the actor loop; it must not block.
type cmdMutate struct {
	actor.InputBase
	Transform func(*types.SessionState)
	Reply     chan error
}

func (cmdMutate) isSessionCommand() {}

// evActionProposed delivers a new pending action from the host.
type evActionProposed struct {
	actor.InputBase
	Action types.PendingAction
}

func (evActionProposed) isSessionEvent() {}

// evActionWithdrawn retracts a previously proposed action.
type evActionWithdrawn struct {
	actor.InputBase
	ID string
}

func (evActionWithdrawn) isSessionEvent() {}

// evProgressUpdated replaces the progress side-channel.
type evProgressUpdated struct {
	actor.InputBase
	Progress types.SessionProgress
}

func (evProgressUpdated) isSessionEvent() {}

// evQuestionAsked sets the active host question.
type evQuestionAsked struct {
	actor.InputBase
	Question types.Question
}

func (evQuestionAsked) isSessionEvent() {}

// evContextWarning records the latest context-budget warning.
type evContextWarning struct {
	actor.InputBase
	Warning types.ContextWarning
}

func (evContextWarning) isSessionEvent() {}

// evStatusChanged applies a host-driven status change.
type evStatusChanged struct {
	actor.InputBase
	Status types.SessionStatus
}

func (evStatusChanged) isSessionEvent() {}

// evModeChanged applies a host permission-mode change.
type evModeChanged struct {
	actor.InputBase
	Mode types.SessionMode
}

func (evModeChanged) isSessionEvent() {}

// evInterruptAck reconciles the interrupt flag with the host's confirmation.
type evInterruptAck struct {
	actor.InputBase
	Interrupted bool
}

func (evInterruptAck) isSessionEvent() {}

// evSnapshot replaces the whole aggregate with a host re-sync.
type evSnapshot struct {
	actor.InputBase
	Session types.SessionState
}

func (evSnapshot) isSessionEvent() {}

// evSessionEnded terminates the session with the host's final status.
type evSessionEnded struct {
	actor.InputBase
	Status types.SessionStatus
	Reason string
}

func (evSessionEnded) isSessionEvent() {}

// evDeliveryFailed reports that an outbound frame never reached the host.
// The optimistic commit that produced the frame stands.
type evDeliveryFailed struct {
	actor.InputBase
	Kind string
	Err  error
}

func (evDeliveryFailed) isSessionEvent() {}

// Effects

// Effect is a marker interface for effects produced by the session reducer.
type Effect interface {
	actor.Effect
	isSessionEffect()
}

// effSendDecision delivers an approve/reject decision to the host.
type effSendDecision struct {
	actor.EffectBase
	ActionID string
	Approved bool
}

func (effSendDecision) isSessionEffect() {}

// effSendAnswer delivers a question answer (or handleOnMac deferral).
type effSendAnswer struct {
	actor.EffectBase
	QuestionID  string
	Answer      *string
	HandleOnMac bool
}

func (effSendAnswer) isSessionEffect() {}

// effSendInterrupt delivers a stop/resume request.
type effSendInterrupt struct {
	actor.EffectBase
	Action types.InterruptAction
}

func (effSendInterrupt) isSessionEffect() {}

// effNotify raises an attention alert on the paired phone. Best-effort; the
// runtime drops it when no notifier is configured.
type effNotify struct {
	actor.EffectBase
	Key     string
	Title   string
	Message string
}

func (effNotify) isSessionEffect() {}
