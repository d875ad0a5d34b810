// Package types defines the public domain model shared between the
// synchronization core and its consumers (presentation layers, tests).
// JSON tags double as the transport payload encoding.
package types

import "time"

// SessionStatus describes the host session lifecycle.
type SessionStatus string

const (
	// StatusIdle means the agent is not doing anything.
	StatusIdle SessionStatus = "idle"
	// StatusRunning means the agent is actively working.
	StatusRunning SessionStatus = "running"
	// StatusWaiting means the agent is blocked on a decision from the watch.
	StatusWaiting SessionStatus = "waiting"
	// StatusCompleted means the session finished successfully.
	StatusCompleted SessionStatus = "completed"
	// StatusFailed means the session ended with an error.
	StatusFailed SessionStatus = "failed"
)

// ActionKind identifies what a proposed action would do on the host.
type ActionKind string

const (
	// ActionEdit modifies an existing file.
	ActionEdit ActionKind = "edit"
	// ActionCreate creates a new file.
	ActionCreate ActionKind = "create"
	// ActionDelete deletes a file.
	ActionDelete ActionKind = "delete"
	// ActionShellCommand runs a shell command.
	ActionShellCommand ActionKind = "shellCommand"
	// ActionOther is anything the host could not classify.
	ActionOther ActionKind = "other"
)

// PendingAction is one proposed host operation awaiting a decision.
//
// Actions are immutable once received; they are only ever removed from the
// pending queue, never edited in place.
type PendingAction struct {
	// ID is the opaque host-assigned action id, unique per session.
	ID string `json:"id"`
	// Kind identifies the operation type.
	Kind ActionKind `json:"kind"`
	// Title is a short display string (e.g. "Run: make test").
	Title string `json:"title"`
	// Description is an optional longer display string.
	Description string `json:"description,omitempty"`
	// FilePath is the target file for edit/create/delete actions.
	FilePath string `json:"filePath,omitempty"`
	// Command is the shell text for shellCommand actions.
	Command string `json:"command,omitempty"`
	// CreatedAt is when the host proposed the action.
	CreatedAt time.Time `json:"createdAt"`
}

// TaskStatus describes one plan task's progress.
type TaskStatus string

const (
	// TaskPending means the task has not started.
	TaskPending TaskStatus = "pending"
	// TaskInProgress means the task is being worked on.
	TaskInProgress TaskStatus = "inProgress"
	// TaskCompleted means the task is done.
	TaskCompleted TaskStatus = "completed"
)

// ProgressTask is one entry in the host's task list.
type ProgressTask struct {
	// Content is the task description.
	Content string `json:"content"`
	// Status is the task's current state.
	Status TaskStatus `json:"status"`
}

// SessionProgress mirrors the host's progress side-channel.
type SessionProgress struct {
	// CompletedCount is the number of finished tasks.
	CompletedCount int `json:"completedCount"`
	// TotalCount is the total number of tasks.
	TotalCount int `json:"totalCount"`
	// CurrentTask is the task being worked on right now.
	CurrentTask string `json:"currentTask,omitempty"`
	// Tasks is the ordered task list.
	Tasks []ProgressTask `json:"tasks,omitempty"`
	// ElapsedSeconds is the wall-clock duration of the session so far.
	ElapsedSeconds int `json:"elapsedSeconds,omitempty"`
}

// IsComplete reports whether every task has finished.
func (p SessionProgress) IsComplete() bool {
	return p.TotalCount > 0 && p.CompletedCount == p.TotalCount
}

// QuestionOption is one selectable answer to a host question.
type QuestionOption struct {
	// Label is the short answer text.
	Label string `json:"label"`
	// Description is an optional explanation of the option.
	Description string `json:"description,omitempty"`
	// Recommended marks the host's suggested option.
	Recommended bool `json:"recommended,omitempty"`
}

// Question is a host question awaiting an answer from the watch.
type Question struct {
	// ID is the opaque host-assigned question id.
	ID string `json:"id"`
	// Text is the question body.
	Text string `json:"text"`
	// Options are the selectable answers.
	Options []QuestionOption `json:"options,omitempty"`
}

// ContextWarning reports the host's context-budget usage.
type ContextWarning struct {
	// PercentageUsed is the fraction of the context budget consumed (0-100).
	PercentageUsed float64 `json:"percentageUsed"`
}

// SessionMode is the host's permission mode.
type SessionMode string

const (
	// ModeNormal asks for approval on risky actions.
	ModeNormal SessionMode = "normal"
	// ModeAutoAccept approves actions on the host without asking.
	ModeAutoAccept SessionMode = "autoAccept"
	// ModePlan restricts the agent to planning.
	ModePlan SessionMode = "plan"
)

// InterruptAction selects the interrupt direction.
type InterruptAction string

const (
	// InterruptStop asks the host to pause the agent.
	InterruptStop InterruptAction = "stop"
	// InterruptResume asks the host to continue after a stop.
	InterruptResume InterruptAction = "resume"
)

// SessionState is the root aggregate mirrored from the host.
type SessionState struct {
	// Status is the session lifecycle state.
	Status SessionStatus `json:"status"`
	// PendingActions is the ordered approval queue (arrival order, unique ids).
	PendingActions []PendingAction `json:"pendingActions"`
	// Progress is the task progress side-channel, when the host reports one.
	Progress *SessionProgress `json:"sessionProgress,omitempty"`
	// PendingQuestion is the active host question, if any.
	PendingQuestion *Question `json:"pendingQuestion,omitempty"`
	// ContextWarning is the latest context-budget warning, if any.
	ContextWarning *ContextWarning `json:"contextWarning,omitempty"`
	// IsInterrupted is true after a stop request until a resume.
	IsInterrupted bool `json:"isInterrupted"`
	// Mode is the host's permission mode.
	Mode SessionMode `json:"mode"`
}

// Clone returns a deep copy safe to publish as an immutable snapshot.
func (s SessionState) Clone() SessionState {
	out := s
	if s.PendingActions != nil {
		out.PendingActions = make([]PendingAction, len(s.PendingActions))
		copy(out.PendingActions, s.PendingActions)
	}
	if s.Progress != nil {
		progress := *s.Progress
		if s.Progress.Tasks != nil {
			progress.Tasks = make([]ProgressTask, len(s.Progress.Tasks))
			copy(progress.Tasks, s.Progress.Tasks)
		}
		out.Progress = &progress
	}
	if s.PendingQuestion != nil {
		question := *s.PendingQuestion
		if s.PendingQuestion.Options != nil {
			question.Options = make([]QuestionOption, len(s.PendingQuestion.Options))
			copy(question.Options, s.PendingQuestion.Options)
		}
		out.PendingQuestion = &question
	}
	if s.ContextWarning != nil {
		warning := *s.ContextWarning
		out.ContextWarning = &warning
	}
	return out
}

// ActionIndex returns the queue index of the action with the given id, or -1.
func (s SessionState) ActionIndex(id string) int {
	for i, action := range s.PendingActions {
		if action.ID == id {
			return i
		}
	}
	return -1
}
