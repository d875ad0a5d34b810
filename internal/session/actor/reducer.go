package actor

import (
	"fmt"

	"github.com/fotescodev/claude-watch/cli/internal/actor"
	"github.com/fotescodev/claude-watch/cli/internal/tier"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// Reduce is the session reducer: the single mutation path for the aggregate.
//
// It is pure. Decisions commit optimistically here, before any network effect
// runs; a later delivery failure is reported but never rolls a commit back.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	// Commands.
	case cmdApprove:
		return reduceApprove(state, in)
	case cmdReject:
		return reduceReject(state, in)
	case cmdApproveAll:
		return reduceApproveAll(state, in)
	case cmdRejectAll:
		return reduceRejectAll(state, in)
	case cmdRemindLater:
		return reduceRemindLater(state, in)
	case cmdGesture:
		return reduceGesture(state, in)
	case cmdAnswerQuestion:
		return reduceAnswerQuestion(state, in)
	case cmdInterrupt:
		return reduceInterrupt(state, in)
	case cmdMutate:
		return reduceMutate(state, in)

	// Events.
	case evActionProposed:
		return reduceActionProposed(state, in)
	case evActionWithdrawn:
		return reduceActionWithdrawn(state, in)
	case evProgressUpdated:
		return reduceProgressUpdated(state, in)
	case evQuestionAsked:
		return reduceQuestionAsked(state, in)
	case evContextWarning:
		return reduceContextWarning(state, in)
	case evStatusChanged:
		return reduceStatusChanged(state, in)
	case evModeChanged:
		return reduceModeChanged(state, in)
	case evInterruptAck:
		return reduceInterruptAck(state, in)
	case evSnapshot:
		return reduceSnapshot(state, in)
	case evSessionEnded:
		return reduceSessionEnded(state, in)
	case evDeliveryFailed:
		return reduceDeliveryFailed(state, in)
	default:
		return state, nil
	}
}

func reduceApprove(state State, cmd cmdApprove) (State, []actor.Effect) {
	idx := state.Session.ActionIndex(cmd.ID)
	if idx < 0 {
		// Already decided or never proposed: idempotent no-op. The first
		// removal owns the wire decision; nothing more may be sent.
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	action := state.Session.PendingActions[idx]
	policy := state.Classifier.Classify(action).Policy()
	if !policy.CanApproveFromWatch {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- fmt.Errorf("%w: action %q %s", ErrPolicyViolation, cmd.ID, policy.DisplayHint):
			default:
			}
		}
		return state, nil
	}

	state.Session = withoutAction(state.Session, idx)
	state.Session.Status = recomputeStatus(state.Session, false)
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, []actor.Effect{effSendDecision{ActionID: cmd.ID, Approved: true}}
}

func reduceReject(state State, cmd cmdReject) (State, []actor.Effect) {
	idx := state.Session.ActionIndex(cmd.ID)
	if idx < 0 {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	// Any tier may be rejected from the watch.
	state.Session = withoutAction(state.Session, idx)
	state.Session.Status = recomputeStatus(state.Session, true)
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, []actor.Effect{effSendDecision{ActionID: cmd.ID, Approved: false}}
}

func reduceApproveAll(state State, cmd cmdApproveAll) (State, []actor.Effect) {
	if len(state.Session.PendingActions) == 0 {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	ineligible := 0
	for _, action := range state.Session.PendingActions {
		if !state.Classifier.Classify(action).Policy().CanApproveFromWatch {
			ineligible++
		}
	}
	if ineligible > 0 {
		// Refuse the whole batch. Approve-all never silently skips a
		// dangerous item and never partially approves.
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- &PolicyViolationError{Ineligible: ineligible}:
			default:
			}
		}
		return state, nil
	}

	approved := state.Session.PendingActions
	session := state.Session
	session.PendingActions = nil
	session.Status = recomputeStatus(session, false)
	state.Session = session

	effects := make([]actor.Effect, 0, len(approved))
	for _, action := range approved {
		effects = append(effects, effSendDecision{ActionID: action.ID, Approved: true})
	}
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, effects
}

func reduceRejectAll(state State, cmd cmdRejectAll) (State, []actor.Effect) {
	if len(state.Session.PendingActions) == 0 {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	rejected := state.Session.PendingActions
	session := state.Session
	session.PendingActions = nil
	session.Status = recomputeStatus(session, true)
	state.Session = session

	effects := make([]actor.Effect, 0, len(rejected))
	for _, action := range rejected {
		effects = append(effects, effSendDecision{ActionID: action.ID, Approved: false})
	}
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, effects
}

func reduceRemindLater(state State, cmd cmdRemindLater) (State, []actor.Effect) {
	idx := state.Session.ActionIndex(cmd.ID)
	if idx < 0 {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	// Drop from the visible queue without sending any decision; the host
	// re-proposes on its own schedule.
	state.Session = withoutAction(state.Session, idx)
	state.Session.Status = recomputeStatus(state.Session, false)
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, nil
}

func reduceGesture(state State, cmd cmdGesture) (State, []actor.Effect) {
	idx := state.Session.ActionIndex(cmd.ID)
	if idx < 0 {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- GestureOutcome{}:
			default:
			}
		}
		return state, nil
	}

	// The policy table binds the gesture: approve for Low/Medium, reject for
	// High. High never reaches the approve branch, so no eligibility check is
	// repeated here.
	action := state.Session.PendingActions[idx]
	gesture := state.Classifier.Classify(action).Policy().Gesture
	approved := gesture == tier.GestureApprove

	state.Session = withoutAction(state.Session, idx)
	state.Session.Status = recomputeStatus(state.Session, !approved)
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- GestureOutcome{Gesture: gesture}:
		default:
		}
	}
	return state, []actor.Effect{effSendDecision{ActionID: cmd.ID, Approved: approved}}
}

func reduceAnswerQuestion(state State, cmd cmdAnswerQuestion) (State, []actor.Effect) {
	question := state.Session.PendingQuestion
	if question == nil || question.ID != cmd.QuestionID {
		// Stale or repeated answer: idempotent no-op.
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	answer := cmd.Answer
	if cmd.HandleOnMac {
		// A deferral is not an answer.
		answer = nil
	}

	session := state.Session
	session.PendingQuestion = nil
	state.Session = session
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, []actor.Effect{effSendAnswer{
		QuestionID:  cmd.QuestionID,
		Answer:      answer,
		HandleOnMac: cmd.HandleOnMac,
	}}
}

func reduceInterrupt(state State, cmd cmdInterrupt) (State, []actor.Effect) {
	if cmd.Action != types.InterruptStop && cmd.Action != types.InterruptResume {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- fmt.Errorf("unknown interrupt action %q", cmd.Action):
			default:
			}
		}
		return state, nil
	}

	stop := cmd.Action == types.InterruptStop
	if state.Session.IsInterrupted == stop {
		// Resume while running (or stop while stopped) is idempotent; nothing
		// is sent.
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	session := state.Session
	session.IsInterrupted = stop
	state.Session = session
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, []actor.Effect{effSendInterrupt{Action: cmd.Action}}
}

func reduceMutate(state State, cmd cmdMutate) (State, []actor.Effect) {
	if cmd.Transform == nil {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- nil:
			default:
			}
		}
		return state, nil
	}

	// The transform works on a deep copy so a refused mutation leaves the
	// published aggregate untouched.
	session := state.Session.Clone()
	cmd.Transform(&session)
	if id, ok := duplicateActionID(session); ok {
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- fmt.Errorf("%w: duplicate pending action id %q", ErrPolicyViolation, id):
			default:
			}
		}
		return state, nil
	}

	state.Session = session
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- nil:
		default:
		}
	}
	return state, nil
}

func reduceActionProposed(state State, ev evActionProposed) (State, []actor.Effect) {
	if ev.Action.ID == "" {
		return state, nil
	}
	if state.Session.ActionIndex(ev.Action.ID) >= 0 {
		// Duplicate id: reported, counted, queue unchanged.
		state.Duplicates++
		return state, nil
	}

	state.Session = withAction(state.Session, ev.Action)
	state.Session.Status = types.StatusWaiting

	title := "Approval needed"
	if state.Classifier.Classify(ev.Action) == tier.High {
		title = "High-risk action pending"
	}
	message := ev.Action.Title
	if message == "" {
		message = string(ev.Action.Kind)
	}
	return state, []actor.Effect{effNotify{
		Key:     "action:" + ev.Action.ID,
		Title:   title,
		Message: message,
	}}
}

func reduceActionWithdrawn(state State, ev evActionWithdrawn) (State, []actor.Effect) {
	idx := state.Session.ActionIndex(ev.ID)
	if idx < 0 {
		return state, nil
	}
	state.Session = withoutAction(state.Session, idx)
	state.Session.Status = recomputeStatus(state.Session, false)
	return state, nil
}

func reduceProgressUpdated(state State, ev evProgressUpdated) (State, []actor.Effect) {
	progress := ev.Progress
	session := state.Session
	session.Progress = &progress
	state.Session = session
	return state, nil
}

func reduceQuestionAsked(state State, ev evQuestionAsked) (State, []actor.Effect) {
	if ev.Question.ID == "" {
		return state, nil
	}
	question := ev.Question
	session := state.Session
	session.PendingQuestion = &question
	state.Session = session
	return state, nil
}

func reduceContextWarning(state State, ev evContextWarning) (State, []actor.Effect) {
	warning := ev.Warning
	session := state.Session
	session.ContextWarning = &warning
	state.Session = session
	return state, nil
}

func reduceStatusChanged(state State, ev evStatusChanged) (State, []actor.Effect) {
	session := state.Session
	session.Status = ev.Status
	state.Session = session
	return state, nil
}

func reduceModeChanged(state State, ev evModeChanged) (State, []actor.Effect) {
	session := state.Session
	session.Mode = ev.Mode
	state.Session = session
	return state, nil
}

func reduceInterruptAck(state State, ev evInterruptAck) (State, []actor.Effect) {
	session := state.Session
	session.IsInterrupted = ev.Interrupted
	state.Session = session
	return state, nil
}

func reduceSnapshot(state State, ev evSnapshot) (State, []actor.Effect) {
	// Full host re-sync replaces the aggregate wholesale, including after a
	// reconnect. Until it arrives the pre-drop queue stays visible.
	state.Session = ev.Session.Clone()
	return state, nil
}

func reduceSessionEnded(state State, ev evSessionEnded) (State, []actor.Effect) {
	session := state.Session
	session.Status = ev.Status
	session.PendingActions = nil
	session.PendingQuestion = nil
	state.Session = session
	return state, nil
}

func reduceDeliveryFailed(state State, ev evDeliveryFailed) (State, []actor.Effect) {
	state.DeliveryFailures++
	return state, []actor.Effect{effNotify{
		Key:     "delivery",
		Title:   "Delivery failed",
		Message: fmt.Sprintf("Could not deliver %s to the host.", ev.Kind),
	}}
}

// recomputeStatus returns the status to publish after a queue mutation. While
// actions remain pending the session stays waiting. Once the queue empties, a
// rejection parks the session idle; any other removal hands control back to
// the agent when it still has work in flight.
func recomputeStatus(session types.SessionState, rejected bool) types.SessionStatus {
	if len(session.PendingActions) > 0 {
		return types.StatusWaiting
	}
	if !rejected && session.Progress != nil && !session.Progress.IsComplete() {
		return types.StatusRunning
	}
	return types.StatusIdle
}

// withAction returns the session with the action appended. The queue backing
// array is never shared with the input, so published snapshots stay intact.
func withAction(session types.SessionState, action types.PendingAction) types.SessionState {
	queue := make([]types.PendingAction, len(session.PendingActions), len(session.PendingActions)+1)
	copy(queue, session.PendingActions)
	session.PendingActions = append(queue, action)
	return session
}

// withoutAction returns the session with the action at idx removed.
func withoutAction(session types.SessionState, idx int) types.SessionState {
	queue := make([]types.PendingAction, 0, len(session.PendingActions)-1)
	queue = append(queue, session.PendingActions[:idx]...)
	queue = append(queue, session.PendingActions[idx+1:]...)
	session.PendingActions = queue
	return session
}

// duplicateActionID reports the first action id that appears more than once
// in the pending queue.
func duplicateActionID(session types.SessionState) (string, bool) {
	seen := make(map[string]struct{}, len(session.PendingActions))
	for _, action := range session.PendingActions {
		if _, ok := seen[action.ID]; ok {
			return action.ID, true
		}
		seen[action.ID] = struct{}{}
	}
	return "", false
}
