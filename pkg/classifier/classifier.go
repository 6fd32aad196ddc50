// Package classifier provides a client for the external semantic classifier
// that labels how close each candidate recipe field is to the reference.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnavailable is returned when the classifier cannot be reached, times
	// out or answers with a non-success status.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrInvalidResponse is returned when the classifier output cannot be
	// parsed into a verdict.
	ErrInvalidResponse = errors.New("invalid classifier response")
)

// Fields are the three scored fields of a recipe step.
type Fields struct {
	Ingredient string `json:"ingredient"`
	Technique  string `json:"technique"`
	Tool       string `json:"tool"`
}

// StepPair is one reference step next to the candidate's version of it.
type StepPair struct {
	Step      int    `json:"step"`
	Reference Fields `json:"reference"`
	Candidate Fields `json:"candidate"`
}

// Request is a batched classification of every step of a recipe.
type Request struct {
	Steps []StepPair `json:"steps"`
}

// FlexInt is an int that can be unmarshaled from either a number or a string.
// Model output is not consistent about quoting step numbers.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler for FlexInt
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = 0
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		i, err := strconv.Atoi(strings.Split(n.String(), ".")[0])
		if err != nil {
			return fmt.Errorf("FlexInt: cannot unmarshal %s", string(data))
		}
		*f = FlexInt(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("FlexInt: cannot unmarshal %s", string(data))
		}
		*f = FlexInt(i)
		return nil
	}

	return fmt.Errorf("FlexInt: cannot unmarshal %s", string(data))
}

// StepVerdict holds the labels of one step. Labels are raw model output and
// are normalized by the caller.
type StepVerdict struct {
	Step       FlexInt `json:"step"`
	Ingredient string  `json:"ingredient"`
	Technique  string  `json:"technique"`
	Tool       string  `json:"tool"`
	Feedback   string  `json:"feedback"`
}

// Verdict is the parsed classifier answer.
type Verdict struct {
	Steps          []StepVerdict `json:"steps"`
	GlobalFeedback string        `json:"global_feedback"`
}

// ByStep indexes the verdict by step number. Entries without a step number
// take their position in the list.
func (v *Verdict) ByStep() map[int]StepVerdict {
	out := make(map[int]StepVerdict, len(v.Steps))
	for i, s := range v.Steps {
		n := int(s.Step)
		if n <= 0 {
			n = i + 1
		}
		if _, dup := out[n]; !dup {
			out[n] = s
		}
	}
	return out
}

// Client defines the interface for semantic classification.
type Client interface {
	// Classify labels every field pair of req in a single call.
	Classify(ctx context.Context, req Request) (*Verdict, error)
}
