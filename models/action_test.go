package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActions_Variants(t *testing.T) {
	actions, err := ParseActions([]byte(`[
		{"type": "click", "selector": "#a"},
		{"type": "type", "selector": "#b", "text": "x"},
		{"type": "write", "selector": "#c", "text": "y", "best_effort": true},
		{"type": "scroll"},
		{"type": "scroll", "direction": "up", "amount": 300},
		{"type": "scroll", "selector": "#footer"},
		{"type": "wait", "milliseconds": 250},
		{"type": "wait", "selector": ".loaded"}
	]`))
	require.NoError(t, err)
	require.Len(t, actions, 8)

	assert.Equal(t, Action{Type: ActionClick, Selector: "#a"}, actions[0])
	assert.Equal(t, Action{Type: ActionInput, Selector: "#b", Text: "x"}, actions[1])
	assert.Equal(t, Action{Type: ActionInput, Selector: "#c", Text: "y", BestEffort: true}, actions[2])
	assert.Equal(t, DefaultScrollAmount, actions[3].Amount)
	assert.Equal(t, -300, actions[4].Amount)
	assert.Equal(t, "#footer", actions[5].Selector)
	assert.Zero(t, actions[5].Amount)
	assert.Equal(t, 250, actions[6].Milliseconds)
	assert.Equal(t, ".loaded", actions[7].Selector)
}

func TestParseActions_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"unknown type", `[{"type": "hover", "selector": "#a"}]`},
		{"missing type", `[{"selector": "#a"}]`},
		{"click without selector", `[{"type": "click"}]`},
		{"type without text", `[{"type": "type", "selector": "#a"}]`},
		{"wait without target", `[{"type": "wait"}]`},
		{"negative wait", `[{"type": "wait", "milliseconds": -5}]`},
		{"bad direction", `[{"type": "scroll", "direction": "left"}]`},
		{"not an array", `{"type": "click", "selector": "#a"}`},
		{"not json", `click #a`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActions([]byte(tt.payload))
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
		})
	}
}

func TestParseActions_WriteWithoutSelector(t *testing.T) {
	actions, err := ParseActions([]byte(`[{"type":"write","text":"hello"}]`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, Action{Type: ActionInput, Text: "hello"}, actions[0])
	assert.Equal(t, "type(focused)", actions[0].String())
}

func TestParseActions_Empty(t *testing.T) {
	for _, payload := range []string{"", "  ", "null", "[]"} {
		actions, err := ParseActions([]byte(payload))
		require.NoError(t, err)
		assert.Empty(t, actions)
	}
}

func TestAction_JSONRoundTripKeepsVariant(t *testing.T) {
	in := []Action{
		{Type: ActionInput, Selector: "#q", Text: "golang"},
		{Type: ActionScroll, Amount: -200},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := ParseActions(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestHasCode_WalksChain(t *testing.T) {
	inner := NewScrapeError(ErrCodeElementNotFound, "no #a", nil)
	outer := NewScrapeError(ErrCodeActionFailed, "action 0 aborted", inner)

	assert.Equal(t, ErrCodeActionFailed, CodeOf(outer))
	assert.True(t, HasCode(outer, ErrCodeElementNotFound))
	assert.True(t, HasCode(outer, ErrCodeActionFailed))
	assert.False(t, HasCode(outer, ErrCodeTimeout))
	assert.False(t, HasCode(nil, ErrCodeTimeout))
}
