package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType tags one variant of Action.
type ActionType string

const (
	ActionClick  ActionType = "click"
	ActionInput  ActionType = "type"
	ActionScroll ActionType = "scroll"
	ActionWait   ActionType = "wait"
)

// DefaultScrollAmount is the scroll distance in pixels when neither an
// amount nor a selector is given.
const DefaultScrollAmount = 500

// Action is one scripted page interaction. Only the fields relevant to Type
// are meaningful:
//
//	click  {selector}
//	type   {selector, text}
//	scroll {amount | selector}, amount in pixels, negative scrolls up
//	wait   {milliseconds | selector}
type Action struct {
	Type         ActionType `json:"type"`
	Selector     string     `json:"selector,omitempty"`
	Text         string     `json:"text,omitempty"`
	Amount       int        `json:"amount,omitempty"`
	Milliseconds int        `json:"milliseconds,omitempty"`

	// BestEffort actions do not abort the remaining sequence on failure.
	BestEffort bool `json:"best_effort,omitempty"`
}

// rawAction is the wire form of Action. It tolerates the
// alternate spellings ("write", "direction").
type rawAction struct {
	Type         string `json:"type"`
	Selector     string `json:"selector"`
	Text         string `json:"text"`
	Amount       *int   `json:"amount"`
	Direction    string `json:"direction"`
	Milliseconds int    `json:"milliseconds"`
	BestEffort   bool   `json:"best_effort"`
}

// ParseActions decodes a JSON array of actions and validates every entry.
// Unknown types and missing required fields yield an INVALID_INPUT error.
func ParseActions(data []byte) ([]Action, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, NewScrapeError(ErrCodeInvalidInput, "invalid actions payload", err)
	}
	if err := ValidateActions(actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// ValidateActions validates each action in order and reports the first
// offending index.
func ValidateActions(actions []Action) error {
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("action %d", i), err)
		}
	}
	return nil
}

// UnmarshalJSON decodes the wire form, normalizing aliases and rejecting
// unknown action types.
func (a *Action) UnmarshalJSON(data []byte) error {
	var r rawAction
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	parsed, err := r.toAction()
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (r rawAction) toAction() (Action, error) {
	a := Action{
		Selector:     r.Selector,
		Text:         r.Text,
		Milliseconds: r.Milliseconds,
		BestEffort:   r.BestEffort,
	}

	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "click":
		a.Type = ActionClick
	case "type", "write":
		a.Type = ActionInput
	case "scroll":
		a.Type = ActionScroll
		if r.Amount != nil {
			a.Amount = *r.Amount
		} else if r.Selector == "" {
			a.Amount = DefaultScrollAmount
		}
		switch strings.ToLower(r.Direction) {
		case "", "down":
		case "up":
			if a.Amount > 0 {
				a.Amount = -a.Amount
			}
		default:
			return Action{}, fmt.Errorf("unknown scroll direction %q", r.Direction)
		}
	case "wait":
		a.Type = ActionWait
	case "":
		return Action{}, fmt.Errorf("missing action type")
	default:
		return Action{}, fmt.Errorf("unknown action type %q", r.Type)
	}
	return a, nil
}

// Validate checks that the fields required by the action's variant are set.
func (a Action) Validate() error {
	switch a.Type {
	case ActionClick:
		if a.Selector == "" {
			return fmt.Errorf("click requires a selector")
		}
	case ActionInput:
		if a.Text == "" {
			return fmt.Errorf("type requires text")
		}
	case ActionScroll:
		if a.Selector == "" && a.Amount == 0 {
			return fmt.Errorf("scroll requires an amount or a selector")
		}
	case ActionWait:
		if a.Milliseconds < 0 {
			return fmt.Errorf("wait milliseconds must not be negative")
		}
		if a.Selector == "" && a.Milliseconds == 0 {
			return fmt.Errorf("wait requires milliseconds or a selector")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// String renders the action for logs and error messages.
func (a Action) String() string {
	switch a.Type {
	case ActionClick:
		return fmt.Sprintf("click(%s)", a.Selector)
	case ActionInput:
		if a.Selector == "" {
			return "type(focused)"
		}
		return fmt.Sprintf("type(%s)", a.Selector)
	case ActionScroll:
		if a.Selector != "" {
			return fmt.Sprintf("scroll(%s)", a.Selector)
		}
		return fmt.Sprintf("scroll(%dpx)", a.Amount)
	case ActionWait:
		if a.Selector != "" {
			return fmt.Sprintf("wait(%s)", a.Selector)
		}
		return fmt.Sprintf("wait(%dms)", a.Milliseconds)
	}
	return string(a.Type)
}
