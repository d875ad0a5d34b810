// Package approval is the decision surface of the watch. Every user-driven
// operation funnels into the session store as a command and waits for the
// reducer's verdict, so the risk-tier policy is enforced in exactly one
// place.
package approval

import (
	"context"

	framework "github.com/fotescodev/claude-watch/cli/internal/actor"
	"github.com/fotescodev/claude-watch/cli/internal/session"
	sessionactor "github.com/fotescodev/claude-watch/cli/internal/session/actor"
	"github.com/fotescodev/claude-watch/cli/internal/tier"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// Engine issues decisions against a session store.
//
// Methods return once the reducer has applied (or refused) the command;
// outbound delivery continues asynchronously and failures surface through
// the store's diagnostics, never as a rollback.
type Engine struct {
	store *session.Store
}

// NewEngine creates an Engine over the given store.
func NewEngine(store *session.Store) *Engine {
	return &Engine{store: store}
}

// Approve approves one pending action.
//
// High-tier actions are refused with ErrPolicyViolation. Approving an id
// that is no longer pending is a no-op.
func (e *Engine) Approve(ctx context.Context, actionID string) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.Approve(actionID, reply), reply)
}

// Reject rejects one pending action. Any tier may be rejected.
func (e *Engine) Reject(ctx context.Context, actionID string) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.Reject(actionID, reply), reply)
}

// ApproveAll approves every pending action in arrival order.
//
// The batch is all-or-nothing: when any pending action is High tier the
// whole batch is refused with a *PolicyViolationError carrying the
// ineligible count, and nothing changes.
func (e *Engine) ApproveAll(ctx context.Context) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.ApproveAll(reply), reply)
}

// RejectAll rejects every pending action in arrival order.
func (e *Engine) RejectAll(ctx context.Context) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.RejectAll(reply), reply)
}

// RemindLater drops an action from the visible queue without recording any
// decision. The host will re-propose it if it still wants an answer.
func (e *Engine) RemindLater(ctx context.Context, actionID string) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.RemindLater(actionID, reply), reply)
}

// GestureDecision resolves the quick double-tap shortcut for one action:
// approve for Low and Medium, reject for High. It returns the gesture that
// was applied; the gesture is empty when the action is no longer pending.
func (e *Engine) GestureDecision(ctx context.Context, actionID string) (tier.Gesture, error) {
	reply := make(chan sessionactor.GestureOutcome, 1)
	if !e.store.Enqueue(sessionactor.Gesture(actionID, reply)) {
		return "", session.ErrStoreStopped
	}
	select {
	case outcome := <-reply:
		return outcome.Gesture, outcome.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AnswerQuestion answers the pending host question with the selected option
// label. Answering a question that is no longer pending is a no-op.
func (e *Engine) AnswerQuestion(ctx context.Context, questionID, answer string) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.AnswerQuestion(questionID, &answer, false, reply), reply)
}

// DeferQuestion hands the pending question back to the host machine instead
// of answering it.
func (e *Engine) DeferQuestion(ctx context.Context, questionID string) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.AnswerQuestion(questionID, nil, true, reply), reply)
}

// Interrupt asks the host to stop or resume the agent. Repeating the
// current direction is an idempotent no-op and sends nothing.
func (e *Engine) Interrupt(ctx context.Context, action types.InterruptAction) error {
	reply := make(chan error, 1)
	return e.submit(ctx, sessionactor.Interrupt(action, reply), reply)
}

func (e *Engine) submit(ctx context.Context, input framework.Input, reply <-chan error) error {
	if !e.store.Enqueue(input) {
		return session.ErrStoreStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
