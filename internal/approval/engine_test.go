package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	"github.com/fotescodev/claude-watch/cli/internal/session"
	sessionactor "github.com/fotescodev/claude-watch/cli/internal/session/actor"
	"github.com/fotescodev/claude-watch/cli/internal/tier"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// frameSink records outbound frames delivered by the effect runtime.
type frameSink struct {
	mu     sync.Mutex
	frames []wire.Outbound
	sent   chan struct{}
}

func newFrameSink() *frameSink {
	return &frameSink{sent: make(chan struct{}, 32)}
}

func (s *frameSink) Send(_ context.Context, frame wire.Outbound) error {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	select {
	case s.sent <- struct{}{}:
	default:
	}
	return nil
}

func (s *frameSink) all() []wire.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Outbound, len(s.frames))
	copy(out, s.frames)
	return out
}

func waitFrames(t *testing.T, sink *frameSink, n int) []wire.Outbound {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		frames := sink.all()
		if len(frames) >= n {
			return frames
		}
		select {
		case <-sink.sent:
		case <-deadline:
			t.Fatalf("timed out waiting for %d frames, have %d", n, len(sink.all()))
		}
	}
}

func newTestEngine(t *testing.T) (*Engine, *session.Store, *frameSink) {
	t.Helper()
	sink := newFrameSink()
	store := session.NewStore(sessionactor.NewRuntime(sink))
	store.Start()
	t.Cleanup(store.Close)
	return NewEngine(store), store, sink
}

// propose seeds a pending action. The store mailbox is FIFO, so a command
// enqueued afterwards always observes the proposal applied.
func propose(t *testing.T, store *session.Store, action types.PendingAction) {
	t.Helper()
	if !store.Enqueue(sessionactor.ActionProposed(action)) {
		t.Fatalf("failed to enqueue proposal %q", action.ID)
	}
}

func editAction(id string) types.PendingAction {
	return types.PendingAction{
		ID:        id,
		Kind:      types.ActionEdit,
		Title:     "Edit " + id + ".go",
		FilePath:  id + ".go",
		CreatedAt: time.Now(),
	}
}

func shellAction(id, command string) types.PendingAction {
	return types.PendingAction{
		ID:        id,
		Kind:      types.ActionShellCommand,
		Title:     "Run: " + command,
		Command:   command,
		CreatedAt: time.Now(),
	}
}

func TestEngineApproveSendsDecision(t *testing.T) {
	t.Parallel()

	engine, store, sink := newTestEngine(t)
	propose(t, store, editAction("a1"))

	if err := engine.Approve(context.Background(), "a1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	frames := waitFrames(t, sink, 1)
	decision, ok := frames[0].(wire.DecisionFrame)
	if !ok || decision.ActionID != "a1" || !decision.Approved {
		t.Fatalf("frame = %+v, want approved decision for a1", frames[0])
	}

	snap := store.Snapshot()
	if len(snap.PendingActions) != 0 || snap.Status != types.StatusIdle {
		t.Fatalf("queue not drained: %+v", snap)
	}
}

func TestEngineApproveRefusesHighTier(t *testing.T) {
	t.Parallel()

	engine, store, sink := newTestEngine(t)
	propose(t, store, shellAction("a1", "rm -rf /var/data"))

	err := engine.Approve(context.Background(), "a1")
	if !errors.Is(err, sessionactor.ErrPolicyViolation) {
		t.Fatalf("Approve = %v, want ErrPolicyViolation", err)
	}

	snap := store.Snapshot()
	if snap.ActionIndex("a1") != 0 {
		t.Fatalf("refused approve must keep the action pending: %+v", snap.PendingActions)
	}

	// Rejection is always allowed; its frame must be the only one.
	if err := engine.Reject(context.Background(), "a1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	frames := waitFrames(t, sink, 1)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	decision, ok := frames[0].(wire.DecisionFrame)
	if !ok || decision.Approved {
		t.Fatalf("frame = %+v, want rejection", frames[0])
	}
}

func TestEngineApproveAllIsAllOrNothing(t *testing.T) {
	t.Parallel()

	engine, store, sink := newTestEngine(t)
	propose(t, store, editAction("a1"))
	propose(t, store, shellAction("a2", "sudo reboot"))
	propose(t, store, editAction("a3"))

	err := engine.ApproveAll(context.Background())
	var violation *sessionactor.PolicyViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("ApproveAll = %v, want *PolicyViolationError", err)
	}
	if violation.Ineligible != 1 {
		t.Fatalf("Ineligible = %d, want 1", violation.Ineligible)
	}
	if got := len(store.Snapshot().PendingActions); got != 3 {
		t.Fatalf("refused batch must leave the queue intact, have %d actions", got)
	}

	// RejectAll has no tier restriction and drains in arrival order.
	if err := engine.RejectAll(context.Background()); err != nil {
		t.Fatalf("RejectAll: %v", err)
	}
	frames := waitFrames(t, sink, 3)
	wantOrder := []string{"a1", "a2", "a3"}
	for i, want := range wantOrder {
		decision, ok := frames[i].(wire.DecisionFrame)
		if !ok || decision.ActionID != want || decision.Approved {
			t.Fatalf("frame[%d] = %+v, want rejection of %s", i, frames[i], want)
		}
	}
}

func TestEngineGestureAsymmetry(t *testing.T) {
	t.Parallel()

	engine, store, sink := newTestEngine(t)

	propose(t, store, editAction("low"))
	gesture, err := engine.GestureDecision(context.Background(), "low")
	if err != nil {
		t.Fatalf("GestureDecision(low): %v", err)
	}
	if gesture != tier.GestureApprove {
		t.Fatalf("gesture = %q, want approve", gesture)
	}

	propose(t, store, shellAction("high", "git push --force origin main"))
	gesture, err = engine.GestureDecision(context.Background(), "high")
	if err != nil {
		t.Fatalf("GestureDecision(high): %v", err)
	}
	if gesture != tier.GestureReject {
		t.Fatalf("gesture = %q, want reject", gesture)
	}

	frames := waitFrames(t, sink, 2)
	first, _ := frames[0].(wire.DecisionFrame)
	second, _ := frames[1].(wire.DecisionFrame)
	if !first.Approved || second.Approved {
		t.Fatalf("frames = %+v, want approve then reject", frames)
	}

	// A gesture against a vanished action resolves to nothing.
	gesture, err = engine.GestureDecision(context.Background(), "gone")
	if err != nil || gesture != "" {
		t.Fatalf("GestureDecision(gone) = (%q, %v), want empty outcome", gesture, err)
	}
}

func TestEngineQuestionAnswerAndDefer(t *testing.T) {
	t.Parallel()

	engine, store, sink := newTestEngine(t)

	store.Enqueue(sessionactor.QuestionAsked(types.Question{
		ID:   "q1",
		Text: "Which package manager?",
		Options: []types.QuestionOption{
			{Label: "Use pnpm", Recommended: true},
			{Label: "Use npm"},
		},
	}))
	if err := engine.AnswerQuestion(context.Background(), "q1", "Use pnpm"); err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}

	frames := waitFrames(t, sink, 1)
	answer, ok := frames[0].(wire.QuestionAnswerFrame)
	if !ok || answer.QuestionID != "q1" || answer.HandleOnMac {
		t.Fatalf("frame = %+v, want answer for q1", frames[0])
	}
	if answer.Answer == nil || *answer.Answer != "Use pnpm" {
		t.Fatalf("answer = %v, want Use pnpm", answer.Answer)
	}
	if store.Snapshot().PendingQuestion != nil {
		t.Fatalf("question not cleared")
	}

	// Answering again after the clear is a stale no-op.
	if err := engine.AnswerQuestion(context.Background(), "q1", "Use npm"); err != nil {
		t.Fatalf("stale AnswerQuestion: %v", err)
	}
	if got := len(sink.all()); got != 1 {
		t.Fatalf("stale answer produced a frame, have %d", got)
	}

	store.Enqueue(sessionactor.QuestionAsked(types.Question{ID: "q2", Text: "Deploy now?"}))
	if err := engine.DeferQuestion(context.Background(), "q2"); err != nil {
		t.Fatalf("DeferQuestion: %v", err)
	}
	frames = waitFrames(t, sink, 2)
	deferred, ok := frames[1].(wire.QuestionAnswerFrame)
	if !ok || !deferred.HandleOnMac || deferred.Answer != nil {
		t.Fatalf("frame = %+v, want deferral with null answer", frames[1])
	}
}

func TestEngineInterruptToggles(t *testing.T) {
	t.Parallel()

	engine, store, sink := newTestEngine(t)

	if err := engine.Interrupt(context.Background(), types.InterruptStop); err != nil {
		t.Fatalf("Interrupt(stop): %v", err)
	}
	frames := waitFrames(t, sink, 1)
	stop, ok := frames[0].(wire.InterruptFrame)
	if !ok || stop.Action != types.InterruptStop {
		t.Fatalf("frame = %+v, want stop", frames[0])
	}
	if !store.Snapshot().IsInterrupted {
		t.Fatalf("IsInterrupted not set")
	}

	// Repeating the same direction sends nothing.
	if err := engine.Interrupt(context.Background(), types.InterruptStop); err != nil {
		t.Fatalf("repeat Interrupt(stop): %v", err)
	}
	if got := len(sink.all()); got != 1 {
		t.Fatalf("idempotent interrupt produced a frame, have %d", got)
	}

	if err := engine.Interrupt(context.Background(), types.InterruptResume); err != nil {
		t.Fatalf("Interrupt(resume): %v", err)
	}
	frames = waitFrames(t, sink, 2)
	resume, ok := frames[1].(wire.InterruptFrame)
	if !ok || resume.Action != types.InterruptResume {
		t.Fatalf("frame = %+v, want resume", frames[1])
	}

	if err := engine.Interrupt(context.Background(), types.InterruptAction("pause")); err == nil {
		t.Fatalf("want error for unknown interrupt action")
	}
}

func TestEngineRemindLaterRecordsNothing(t *testing.T) {
	t.Parallel()

	engine, store, sink := newTestEngine(t)
	propose(t, store, editAction("a1"))

	if err := engine.RemindLater(context.Background(), "a1"); err != nil {
		t.Fatalf("RemindLater: %v", err)
	}

	snap := store.Snapshot()
	if len(snap.PendingActions) != 0 || snap.Status != types.StatusIdle {
		t.Fatalf("remind later must drop the action: %+v", snap)
	}
	if got := len(sink.all()); got != 0 {
		t.Fatalf("remind later must not send a decision, have %d frames", got)
	}
}

func TestEngineAgainstStoppedStore(t *testing.T) {
	t.Parallel()

	sink := newFrameSink()
	store := session.NewStore(sessionactor.NewRuntime(sink))
	store.Start()
	store.Close()
	engine := NewEngine(store)

	if err := engine.Approve(context.Background(), "a1"); !errors.Is(err, session.ErrStoreStopped) {
		t.Fatalf("Approve = %v, want ErrStoreStopped", err)
	}
	if _, err := engine.GestureDecision(context.Background(), "a1"); !errors.Is(err, session.ErrStoreStopped) {
		t.Fatalf("GestureDecision = %v, want ErrStoreStopped", err)
	}
}
