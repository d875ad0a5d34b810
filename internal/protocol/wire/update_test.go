package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

func TestParseUpdateEnvelope(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type": "actionProposed",
		"payload": map[string]any{
			"id":    "act-1",
			"kind":  "edit",
			"title": "Edit main.go",
		},
	})
	require.NoError(t, err)
	require.Equal(t, UpdateActionProposed, env.Type)

	action, err := env.DecodeAction()
	require.NoError(t, err)
	require.Equal(t, "act-1", action.ID)
	require.Equal(t, types.ActionEdit, action.Kind)
	require.Equal(t, "Edit main.go", action.Title)
}

func TestParseUpdateEnvelope_MissingType(t *testing.T) {
	_, err := ParseUpdateEnvelope(map[string]any{
		"payload": map[string]any{"id": "act-1"},
	})
	require.Error(t, err)
}

func TestDecodeAction_MissingID(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type":    "actionProposed",
		"payload": map[string]any{"kind": "edit"},
	})
	require.NoError(t, err)

	_, err = env.DecodeAction()
	require.ErrorContains(t, err, "missing id")
}

func TestDecodeActionWithdrawn(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type":    "actionWithdrawn",
		"payload": map[string]any{"actionId": "act-7"},
	})
	require.NoError(t, err)

	payload, err := env.DecodeActionWithdrawn()
	require.NoError(t, err)
	require.Equal(t, "act-7", payload.ActionID)
}

func TestDecodeProgress(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type": "progressUpdate",
		"payload": map[string]any{
			"completedCount": 2,
			"totalCount":     5,
			"currentTask":    "Running tests",
			"tasks": []any{
				map[string]any{"content": "Write code", "status": "completed"},
				map[string]any{"content": "Running tests", "status": "inProgress"},
			},
			"elapsedSeconds": 42,
		},
	})
	require.NoError(t, err)

	progress, err := env.DecodeProgress()
	require.NoError(t, err)
	require.Equal(t, 2, progress.CompletedCount)
	require.Equal(t, 5, progress.TotalCount)
	require.Equal(t, "Running tests", progress.CurrentTask)
	require.Len(t, progress.Tasks, 2)
	require.Equal(t, types.TaskInProgress, progress.Tasks[1].Status)
	require.False(t, progress.IsComplete())
}

func TestDecodeQuestion(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type": "question",
		"payload": map[string]any{
			"id":   "q-1",
			"text": "Proceed with the migration?",
			"options": []any{
				map[string]any{"label": "Yes", "recommended": true},
				map[string]any{"label": "No", "description": "Keep the old schema"},
			},
		},
	})
	require.NoError(t, err)

	question, err := env.DecodeQuestion()
	require.NoError(t, err)
	require.Equal(t, "q-1", question.ID)
	require.Len(t, question.Options, 2)
	require.True(t, question.Options[0].Recommended)
	require.Equal(t, "Keep the old schema", question.Options[1].Description)
}

func TestDecodeStatusChanged(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type":    "statusChanged",
		"payload": map[string]any{"status": "running"},
	})
	require.NoError(t, err)

	payload, err := env.DecodeStatusChanged()
	require.NoError(t, err)
	require.Equal(t, types.StatusRunning, payload.Status)
}

func TestDecodeStatusChanged_MissingStatus(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type":    "statusChanged",
		"payload": map[string]any{},
	})
	require.NoError(t, err)

	_, err = env.DecodeStatusChanged()
	require.ErrorContains(t, err, "missing status")
}

func TestDecodeSessionEnded_DefaultsCompleted(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{
		"type":    "sessionEnded",
		"payload": map[string]any{},
	})
	require.NoError(t, err)

	payload, err := env.DecodeSessionEnded()
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, payload.Status)
}

func TestDecode_MissingPayload(t *testing.T) {
	env, err := ParseUpdateEnvelope(map[string]any{"type": "question"})
	require.NoError(t, err)

	_, err = env.DecodeQuestion()
	require.ErrorContains(t, err, "missing payload")
}

func TestOutboundDecisionJSON(t *testing.T) {
	raw, err := json.Marshal(Decision("act-1", true))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"decision","actionId":"act-1","approved":true}`, string(raw))
}

func TestOutboundQuestionAnswerJSON(t *testing.T) {
	answer := "Yes"
	raw, err := json.Marshal(QuestionAnswer("q-1", &answer, false))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"questionAnswer","questionId":"q-1","answer":"Yes","handleOnMac":false}`, string(raw))
}

func TestOutboundQuestionAnswerJSON_Deferred(t *testing.T) {
	// A deferred answer serializes as an explicit null, not an omitted key.
	raw, err := json.Marshal(QuestionAnswer("q-1", nil, true))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"questionAnswer","questionId":"q-1","answer":null,"handleOnMac":true}`, string(raw))
}

func TestOutboundInterruptJSON(t *testing.T) {
	raw, err := json.Marshal(Interrupt(types.InterruptStop))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"interrupt","action":"stop"}`, string(raw))
}
