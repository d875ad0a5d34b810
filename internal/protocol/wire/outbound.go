package wire

import "github.com/fotescodev/claude-watch/cli/pkg/types"

// Outbound type strings carried in every frame's "type" field.
const (
	// OutboundDecision reports an approve/reject decision for one action.
	OutboundDecision = "decision"
	// OutboundInterrupt requests a stop or resume.
	OutboundInterrupt = "interrupt"
	// OutboundQuestionAnswer answers (or defers) the active question.
	OutboundQuestionAnswer = "questionAnswer"
)

// Outbound is one watch-to-host frame. Implementations are the concrete
// frame structs below; the marker keeps transports from accepting arbitrary
// values.
type Outbound interface {
	isOutbound()
	// Kind returns the frame's type string.
	Kind() string
}

// DecisionFrame reports an approve/reject decision for one action.
type DecisionFrame struct {
	Type string `json:"type"`
	// ActionID is the decided action's id.
	ActionID string `json:"actionId"`
	// Approved reports the decision.
	Approved bool `json:"approved"`
}

func (DecisionFrame) isOutbound() {}

// Kind returns the frame's type string.
func (f DecisionFrame) Kind() string { return f.Type }

// InterruptFrame requests a stop or resume.
type InterruptFrame struct {
	Type string `json:"type"`
	// Action is "stop" or "resume".
	Action types.InterruptAction `json:"action"`
}

func (InterruptFrame) isOutbound() {}

// Kind returns the frame's type string.
func (f InterruptFrame) Kind() string { return f.Type }

// QuestionAnswerFrame answers (or defers) the active question.
type QuestionAnswerFrame struct {
	Type string `json:"type"`
	// QuestionID is the answered question's id.
	QuestionID string `json:"questionId"`
	// Answer is the selected option label; null when the question is
	// deferred to the host machine.
	Answer *string `json:"answer"`
	// HandleOnMac defers the question instead of answering it.
	HandleOnMac bool `json:"handleOnMac"`
}

func (QuestionAnswerFrame) isOutbound() {}

// Kind returns the frame's type string.
func (f QuestionAnswerFrame) Kind() string { return f.Type }

// Decision builds a decision frame.
func Decision(actionID string, approved bool) DecisionFrame {
	return DecisionFrame{
		Type:     OutboundDecision,
		ActionID: actionID,
		Approved: approved,
	}
}

// Interrupt builds an interrupt frame.
func Interrupt(action types.InterruptAction) InterruptFrame {
	return InterruptFrame{
		Type:   OutboundInterrupt,
		Action: action,
	}
}

// QuestionAnswer builds a questionAnswer frame. A nil answer with
// handleOnMac=true defers the question without answering it.
func QuestionAnswer(questionID string, answer *string, handleOnMac bool) QuestionAnswerFrame {
	return QuestionAnswerFrame{
		Type:        OutboundQuestionAnswer,
		QuestionID:  questionID,
		Answer:      answer,
		HandleOnMac: handleOnMac,
	}
}
