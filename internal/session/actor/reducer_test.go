package actor

import (
	"errors"
	"testing"

	"github.com/fotescodev/claude-watch/cli/internal/tier"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

func editAction(id, path string) types.PendingAction {
	return types.PendingAction{ID: id, Kind: types.ActionEdit, Title: "Edit: " + path, FilePath: path}
}

func shellAction(id, command string) types.PendingAction {
	return types.PendingAction{ID: id, Kind: types.ActionShellCommand, Title: "Run: " + command, Command: command}
}

func deleteAction(id, path string) types.PendingAction {
	return types.PendingAction{ID: id, Kind: types.ActionDelete, Title: "Delete: " + path, FilePath: path}
}

func testState(actions ...types.PendingAction) State {
	state := NewState(nil)
	if len(actions) > 0 {
		state.Session.PendingActions = actions
		state.Session.Status = types.StatusWaiting
	}
	return state
}

func receivedErr(t *testing.T, reply chan error) error {
	t.Helper()
	select {
	case err := <-reply:
		return err
	default:
		t.Fatalf("expected reply to be completed")
		return nil
	}
}

func TestReduceApprove_RemovesActionAndSendsDecision(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "main.go"), editAction("a2", "util.go"))
	reply := make(chan error, 1)

	next, effects := Reduce(state, cmdApprove{ID: "a1", Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("reply err=%v, want nil", err)
	}
	if next.Session.ActionIndex("a1") != -1 {
		t.Fatalf("a1 still pending")
	}
	if got := len(next.Session.PendingActions); got != 1 {
		t.Fatalf("pending=%d, want 1", got)
	}
	if next.Session.Status != types.StatusWaiting {
		t.Fatalf("status=%v, want waiting while actions remain", next.Session.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("effects=%d, want 1", len(effects))
	}
	dec, ok := effects[0].(effSendDecision)
	if !ok {
		t.Fatalf("effect type=%T, want effSendDecision", effects[0])
	}
	if dec.ActionID != "a1" || !dec.Approved {
		t.Fatalf("decision=%+v, want a1 approved", dec)
	}
}

func TestReduceApprove_HighTierRefusedNoStateChange(t *testing.T) {
	t.Parallel()

	state := testState(deleteAction("d1", "prod.db"))
	reply := make(chan error, 1)

	next, effects := Reduce(state, cmdApprove{ID: "d1", Reply: reply})
	err := receivedErr(t, reply)
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("err=%v, want ErrPolicyViolation", err)
	}
	if len(next.Session.PendingActions) != 1 {
		t.Fatalf("queue changed: %+v", next.Session.PendingActions)
	}
	if next.Session.Status != types.StatusWaiting {
		t.Fatalf("status=%v, want waiting", next.Session.Status)
	}
	if len(effects) != 0 {
		t.Fatalf("effects=%d, want 0", len(effects))
	}
}

func TestReduceApprove_MissingIDIsIdempotentNoOp(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "main.go"))
	first := make(chan error, 1)
	next, effects := Reduce(state, cmdApprove{ID: "a1", Reply: first})
	if err := receivedErr(t, first); err != nil {
		t.Fatalf("first approve err=%v", err)
	}
	if len(effects) != 1 {
		t.Fatalf("first approve effects=%d, want 1", len(effects))
	}

	// Second decision on the already-removed id: no error, no effect.
	second := make(chan error, 1)
	again, effects := Reduce(next, cmdApprove{ID: "a1", Reply: second})
	if err := receivedErr(t, second); err != nil {
		t.Fatalf("second approve err=%v, want nil", err)
	}
	if len(effects) != 0 {
		t.Fatalf("second approve effects=%d, want 0", len(effects))
	}
	if len(again.Session.PendingActions) != 0 {
		t.Fatalf("queue=%+v, want empty", again.Session.PendingActions)
	}
}

func TestReduceReject_ThenApprove_SendsOneDecision(t *testing.T) {
	t.Parallel()

	state := testState(deleteAction("d1", "data"))
	reject := make(chan error, 1)
	next, effects := Reduce(state, cmdReject{ID: "d1", Reply: reject})
	if err := receivedErr(t, reject); err != nil {
		t.Fatalf("reject err=%v, want nil (any tier may be rejected)", err)
	}
	if len(effects) != 1 {
		t.Fatalf("reject effects=%d, want 1", len(effects))
	}
	if dec := effects[0].(effSendDecision); dec.Approved {
		t.Fatalf("decision approved=%v, want false", dec.Approved)
	}
	if next.Session.Status != types.StatusIdle {
		t.Fatalf("status=%v, want idle after reject drains queue", next.Session.Status)
	}

	approve := make(chan error, 1)
	_, effects = Reduce(next, cmdApprove{ID: "d1", Reply: approve})
	if err := receivedErr(t, approve); err != nil {
		t.Fatalf("late approve err=%v, want nil", err)
	}
	if len(effects) != 0 {
		t.Fatalf("late approve effects=%d, want 0 (only first decision on the wire)", len(effects))
	}
}

func TestReduceApproveAll_RefusesWholeBatchWithIneligibleCount(t *testing.T) {
	t.Parallel()

	state := testState(
		editAction("a1", "a.go"),
		shellAction("a2", "rm -rf /tmp/scratch"),
	)
	reply := make(chan error, 1)

	next, effects := Reduce(state, cmdApproveAll{Reply: reply})
	err := receivedErr(t, reply)
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("err=%v, want ErrPolicyViolation", err)
	}
	var violation *PolicyViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err type=%T, want *PolicyViolationError", err)
	}
	if violation.Ineligible != 1 {
		t.Fatalf("ineligible=%d, want 1", violation.Ineligible)
	}
	if len(next.Session.PendingActions) != 2 {
		t.Fatalf("queue=%d, want unchanged 2", len(next.Session.PendingActions))
	}
	if len(effects) != 0 {
		t.Fatalf("effects=%d, want 0 (no partial approval)", len(effects))
	}
}

func TestReduceApproveAll_AllEligibleDrainsInOneMutation(t *testing.T) {
	t.Parallel()

	state := testState(
		editAction("a1", "a.go"),
		shellAction("a2", "make test"),
		editAction("a3", "b.go"),
	)
	reply := make(chan error, 1)

	next, effects := Reduce(state, cmdApproveAll{Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v, want nil", err)
	}
	if len(next.Session.PendingActions) != 0 {
		t.Fatalf("queue=%+v, want empty", next.Session.PendingActions)
	}
	if len(effects) != 3 {
		t.Fatalf("effects=%d, want 3 decisions", len(effects))
	}
	for i, want := range []string{"a1", "a2", "a3"} {
		dec := effects[i].(effSendDecision)
		if dec.ActionID != want || !dec.Approved {
			t.Fatalf("effect[%d]=%+v, want %s approved", i, dec, want)
		}
	}
	if next.Session.Status != types.StatusIdle {
		t.Fatalf("status=%v, want idle with no progress active", next.Session.Status)
	}
}

func TestReduceRejectAll_AnyTier(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "a.go"), deleteAction("d1", "x"))
	reply := make(chan error, 1)

	next, effects := Reduce(state, cmdRejectAll{Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v, want nil", err)
	}
	if len(next.Session.PendingActions) != 0 {
		t.Fatalf("queue=%+v, want empty", next.Session.PendingActions)
	}
	if len(effects) != 2 {
		t.Fatalf("effects=%d, want 2", len(effects))
	}
	for _, eff := range effects {
		if dec := eff.(effSendDecision); dec.Approved {
			t.Fatalf("decision=%+v, want rejected", dec)
		}
	}
	if next.Session.Status != types.StatusIdle {
		t.Fatalf("status=%v, want idle", next.Session.Status)
	}
}

func TestReduceRemindLater_DropsWithoutDecision(t *testing.T) {
	t.Parallel()

	state := testState(deleteAction("d1", "x"))
	reply := make(chan error, 1)

	next, effects := Reduce(state, cmdRemindLater{ID: "d1", Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v, want nil", err)
	}
	if len(next.Session.PendingActions) != 0 {
		t.Fatalf("queue=%+v, want empty", next.Session.PendingActions)
	}
	if len(effects) != 0 {
		t.Fatalf("effects=%d, want 0 (no decision claim)", len(effects))
	}
}

func TestReduceGesture_Asymmetry(t *testing.T) {
	t.Parallel()

	// Low tier: the double-tap approves.
	low := testState(editAction("a1", "a.go"))
	lowReply := make(chan GestureOutcome, 1)
	_, effects := Reduce(low, cmdGesture{ID: "a1", Reply: lowReply})
	outcome := <-lowReply
	if outcome.Gesture != tier.GestureApprove || outcome.Err != nil {
		t.Fatalf("low outcome=%+v, want approve", outcome)
	}
	if dec := effects[0].(effSendDecision); !dec.Approved {
		t.Fatalf("low decision=%+v, want approved", dec)
	}

	// High tier: the same gesture rejects.
	high := testState(deleteAction("d1", "x"))
	highReply := make(chan GestureOutcome, 1)
	next, effects := Reduce(high, cmdGesture{ID: "d1", Reply: highReply})
	outcome = <-highReply
	if outcome.Gesture != tier.GestureReject || outcome.Err != nil {
		t.Fatalf("high outcome=%+v, want reject", outcome)
	}
	if dec := effects[0].(effSendDecision); dec.Approved {
		t.Fatalf("high decision=%+v, want rejected", dec)
	}
	if next.Session.Status != types.StatusIdle {
		t.Fatalf("status=%v, want idle after reject", next.Session.Status)
	}

	// Missing id: no-op, empty outcome.
	missingReply := make(chan GestureOutcome, 1)
	_, effects = Reduce(testState(), cmdGesture{ID: "ghost", Reply: missingReply})
	outcome = <-missingReply
	if outcome.Gesture != "" || outcome.Err != nil {
		t.Fatalf("missing outcome=%+v, want empty", outcome)
	}
	if len(effects) != 0 {
		t.Fatalf("missing effects=%d, want 0", len(effects))
	}
}

func TestReduceStatusAfterDrain_RunningWhenProgressActive(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "a.go"))
	state.Session.Progress = &types.SessionProgress{CompletedCount: 2, TotalCount: 5}

	reply := make(chan error, 1)
	next, _ := Reduce(state, cmdApprove{ID: "a1", Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v", err)
	}
	if next.Session.Status != types.StatusRunning {
		t.Fatalf("status=%v, want running with progress in flight", next.Session.Status)
	}

	// Complete progress: draining parks the session idle instead.
	state = testState(editAction("a1", "a.go"))
	state.Session.Progress = &types.SessionProgress{CompletedCount: 5, TotalCount: 5}
	reply = make(chan error, 1)
	next, _ = Reduce(state, cmdApprove{ID: "a1", Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v", err)
	}
	if next.Session.Status != types.StatusIdle {
		t.Fatalf("status=%v, want idle with progress complete", next.Session.Status)
	}
}

func TestReduceAnswerQuestion_ClearsOptimistically(t *testing.T) {
	t.Parallel()

	state := testState()
	state.Session.PendingQuestion = &types.Question{ID: "q1", Text: "Deploy?"}

	answer := "Yes"
	reply := make(chan error, 1)
	next, effects := Reduce(state, cmdAnswerQuestion{QuestionID: "q1", Answer: &answer, Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v", err)
	}
	if next.Session.PendingQuestion != nil {
		t.Fatalf("question not cleared")
	}
	sent := effects[0].(effSendAnswer)
	if sent.QuestionID != "q1" || sent.Answer == nil || *sent.Answer != "Yes" || sent.HandleOnMac {
		t.Fatalf("answer effect=%+v", sent)
	}

	// Stale answer for a cleared question: idempotent no-op.
	stale := make(chan error, 1)
	_, effects = Reduce(next, cmdAnswerQuestion{QuestionID: "q1", Answer: &answer, Reply: stale})
	if err := receivedErr(t, stale); err != nil {
		t.Fatalf("stale err=%v, want nil", err)
	}
	if len(effects) != 0 {
		t.Fatalf("stale effects=%d, want 0", len(effects))
	}
}

func TestReduceAnswerQuestion_HandleOnMacIsDeferralNotAnswer(t *testing.T) {
	t.Parallel()

	state := testState()
	state.Session.PendingQuestion = &types.Question{ID: "q1", Text: "Deploy?"}

	answer := "ignored"
	reply := make(chan error, 1)
	next, effects := Reduce(state, cmdAnswerQuestion{QuestionID: "q1", Answer: &answer, HandleOnMac: true, Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v", err)
	}
	if next.Session.PendingQuestion != nil {
		t.Fatalf("question not cleared on deferral")
	}
	sent := effects[0].(effSendAnswer)
	if sent.Answer != nil || !sent.HandleOnMac {
		t.Fatalf("deferral effect=%+v, want nil answer + handleOnMac", sent)
	}
}

func TestReduceInterrupt_TogglesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	state := testState()

	stop := make(chan error, 1)
	next, effects := Reduce(state, cmdInterrupt{Action: types.InterruptStop, Reply: stop})
	if err := receivedErr(t, stop); err != nil {
		t.Fatalf("stop err=%v", err)
	}
	if !next.Session.IsInterrupted {
		t.Fatalf("IsInterrupted=false after stop")
	}
	if eff := effects[0].(effSendInterrupt); eff.Action != types.InterruptStop {
		t.Fatalf("effect=%+v, want stop", eff)
	}

	// Repeated stop: idempotent, nothing sent.
	again := make(chan error, 1)
	next, effects = Reduce(next, cmdInterrupt{Action: types.InterruptStop, Reply: again})
	if err := receivedErr(t, again); err != nil {
		t.Fatalf("repeat stop err=%v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("repeat stop effects=%d, want 0", len(effects))
	}

	resume := make(chan error, 1)
	next, effects = Reduce(next, cmdInterrupt{Action: types.InterruptResume, Reply: resume})
	if err := receivedErr(t, resume); err != nil {
		t.Fatalf("resume err=%v", err)
	}
	if next.Session.IsInterrupted {
		t.Fatalf("IsInterrupted=true after resume")
	}
	if eff := effects[0].(effSendInterrupt); eff.Action != types.InterruptResume {
		t.Fatalf("effect=%+v, want resume", eff)
	}

	// Resume while already running: idempotent no-op.
	idle := make(chan error, 1)
	_, effects = Reduce(next, cmdInterrupt{Action: types.InterruptResume, Reply: idle})
	if err := receivedErr(t, idle); err != nil {
		t.Fatalf("idle resume err=%v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("idle resume effects=%d, want 0", len(effects))
	}
}

func TestReduceActionProposed_DuplicateIDCountedNotApplied(t *testing.T) {
	t.Parallel()

	state := testState()
	next, effects := Reduce(state, evActionProposed{Action: editAction("a1", "a.go")})
	if len(next.Session.PendingActions) != 1 {
		t.Fatalf("pending=%d, want 1", len(next.Session.PendingActions))
	}
	if next.Session.Status != types.StatusWaiting {
		t.Fatalf("status=%v, want waiting", next.Session.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("effects=%d, want 1 notify", len(effects))
	}
	if eff := effects[0].(effNotify); eff.Key != "action:a1" {
		t.Fatalf("notify key=%q", eff.Key)
	}

	dup, effects := Reduce(next, evActionProposed{Action: shellAction("a1", "other")})
	if dup.Duplicates != 1 {
		t.Fatalf("duplicates=%d, want 1", dup.Duplicates)
	}
	if len(dup.Session.PendingActions) != 1 {
		t.Fatalf("queue changed on duplicate: %+v", dup.Session.PendingActions)
	}
	if dup.Session.PendingActions[0].Kind != types.ActionEdit {
		t.Fatalf("original action replaced by duplicate")
	}
	if len(effects) != 0 {
		t.Fatalf("duplicate effects=%d, want 0", len(effects))
	}
}

func TestReduceActionWithdrawn(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "a.go"), editAction("a2", "b.go"))
	next, effects := Reduce(state, evActionWithdrawn{ID: "a1"})
	if next.Session.ActionIndex("a1") != -1 {
		t.Fatalf("a1 still pending after withdrawal")
	}
	if next.Session.Status != types.StatusWaiting {
		t.Fatalf("status=%v, want waiting while a2 remains", next.Session.Status)
	}
	if len(effects) != 0 {
		t.Fatalf("effects=%d, want 0", len(effects))
	}

	// Unknown id: no-op.
	same, _ := Reduce(next, evActionWithdrawn{ID: "ghost"})
	if len(same.Session.PendingActions) != 1 {
		t.Fatalf("queue=%+v, want unchanged", same.Session.PendingActions)
	}
}

func TestReduceSnapshot_ReplacesAggregate(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "a.go"))
	state.Session.IsInterrupted = true

	incoming := types.SessionState{
		Status:         types.StatusRunning,
		PendingActions: []types.PendingAction{shellAction("h1", "make build")},
		Progress:       &types.SessionProgress{CompletedCount: 1, TotalCount: 4},
		Mode:           types.ModeAutoAccept,
	}
	next, effects := Reduce(state, evSnapshot{Session: incoming})
	if len(effects) != 0 {
		t.Fatalf("effects=%d, want 0", len(effects))
	}
	if next.Session.Status != types.StatusRunning || next.Session.Mode != types.ModeAutoAccept {
		t.Fatalf("snapshot not applied: %+v", next.Session)
	}
	if next.Session.ActionIndex("h1") != 0 || len(next.Session.PendingActions) != 1 {
		t.Fatalf("queue=%+v, want [h1]", next.Session.PendingActions)
	}
	if next.Session.IsInterrupted {
		t.Fatalf("stale interrupt flag survived snapshot")
	}

	// The snapshot is cloned: mutating the inbound value later must not leak
	// into the published aggregate.
	incoming.PendingActions[0].ID = "mutated"
	if next.Session.PendingActions[0].ID != "h1" {
		t.Fatalf("snapshot shares backing array with event payload")
	}
}

func TestReduceSessionEnded_ClearsQueueAndQuestion(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "a.go"))
	state.Session.PendingQuestion = &types.Question{ID: "q1", Text: "?"}
	state.Session.Progress = &types.SessionProgress{CompletedCount: 4, TotalCount: 4}

	next, _ := Reduce(state, evSessionEnded{Status: types.StatusFailed, Reason: "crash"})
	if next.Session.Status != types.StatusFailed {
		t.Fatalf("status=%v, want failed", next.Session.Status)
	}
	if len(next.Session.PendingActions) != 0 || next.Session.PendingQuestion != nil {
		t.Fatalf("queue/question survived session end: %+v", next.Session)
	}
	if next.Session.Progress == nil {
		t.Fatalf("progress should survive for the summary")
	}
}

func TestReduceDeliveryFailed_CountsAndNotifiesNeverRestores(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "a.go"))
	reply := make(chan error, 1)
	next, _ := Reduce(state, cmdApprove{ID: "a1", Reply: reply})
	if err := receivedErr(t, reply); err != nil {
		t.Fatalf("err=%v", err)
	}

	failed, effects := Reduce(next, evDeliveryFailed{Kind: "decision", Err: errors.New("relay down")})
	if failed.DeliveryFailures != 1 {
		t.Fatalf("failures=%d, want 1", failed.DeliveryFailures)
	}
	if len(failed.Session.PendingActions) != 0 {
		t.Fatalf("optimistic removal rolled back: %+v", failed.Session.PendingActions)
	}
	if len(effects) != 1 {
		t.Fatalf("effects=%d, want 1 notify", len(effects))
	}
	if eff := effects[0].(effNotify); eff.Key != "delivery" {
		t.Fatalf("notify key=%q, want delivery", eff.Key)
	}
}

func TestReduceMutate_RefusesDuplicateIDs(t *testing.T) {
	t.Parallel()

	state := testState(editAction("a1", "a.go"))
	reply := make(chan error, 1)
	next, _ := Reduce(state, cmdMutate{
		Transform: func(s *types.SessionState) {
			s.PendingActions = append(s.PendingActions, editAction("a1", "clone.go"))
		},
		Reply: reply,
	})
	err := receivedErr(t, reply)
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("err=%v, want ErrPolicyViolation", err)
	}
	if len(next.Session.PendingActions) != 1 {
		t.Fatalf("refused mutation leaked: %+v", next.Session.PendingActions)
	}

	ok := make(chan error, 1)
	applied, _ := Reduce(state, cmdMutate{
		Transform: func(s *types.SessionState) { s.Mode = types.ModePlan },
		Reply:     ok,
	})
	if err := receivedErr(t, ok); err != nil {
		t.Fatalf("err=%v", err)
	}
	if applied.Session.Mode != types.ModePlan {
		t.Fatalf("mode=%v, want plan", applied.Session.Mode)
	}
}

func TestReduceHostSideChannels(t *testing.T) {
	t.Parallel()

	state := testState()

	next, _ := Reduce(state, evProgressUpdated{Progress: types.SessionProgress{CompletedCount: 1, TotalCount: 3, CurrentTask: "wiring"}})
	if next.Session.Progress == nil || next.Session.Progress.CurrentTask != "wiring" {
		t.Fatalf("progress=%+v", next.Session.Progress)
	}

	next, _ = Reduce(next, evQuestionAsked{Question: types.Question{ID: "q1", Text: "Deploy?"}})
	if next.Session.PendingQuestion == nil || next.Session.PendingQuestion.ID != "q1" {
		t.Fatalf("question=%+v", next.Session.PendingQuestion)
	}

	next, _ = Reduce(next, evContextWarning{Warning: types.ContextWarning{PercentageUsed: 85.5}})
	if next.Session.ContextWarning == nil || next.Session.ContextWarning.PercentageUsed != 85.5 {
		t.Fatalf("warning=%+v", next.Session.ContextWarning)
	}

	next, _ = Reduce(next, evStatusChanged{Status: types.StatusRunning})
	if next.Session.Status != types.StatusRunning {
		t.Fatalf("status=%v", next.Session.Status)
	}

	next, _ = Reduce(next, evModeChanged{Mode: types.ModeAutoAccept})
	if next.Session.Mode != types.ModeAutoAccept {
		t.Fatalf("mode=%v", next.Session.Mode)
	}

	next, _ = Reduce(next, evInterruptAck{Interrupted: true})
	if !next.Session.IsInterrupted {
		t.Fatalf("IsInterrupted=false after ack")
	}
}
