// ABOUTME: Parser for manual interaction scripts: ordered selector steps in JSON form.
// ABOUTME: Unknown actions are skipped rather than failing the whole script (forward-compatible).
package browser

import (
	"fmt"

	"github.com/2389-research/nichescout/llm"
)

// Step is one instruction in a manual interaction script.
type Step struct {
	Action   string `json:"action"` // "navigate", "click", "wait", "read"
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// knownActions lists the step actions the executor understands.
var knownActions = map[string]bool{
	"navigate": true,
	"click":    true,
	"wait":     true,
	"read":     true,
}

// ParseScript decodes a manual script into executable steps. The provider
// wraps scripts in prose on occasion, so parsing reuses the tolerant decoder.
// Steps with unknown actions are dropped; a script with no usable steps is an
// error so the caller falls back to direct navigation.
func ParseScript(raw string) ([]Step, error) {
	var steps []Step
	if !llm.Decode(raw, &steps) {
		return nil, fmt.Errorf("unparseable manual script")
	}

	usable := steps[:0]
	for _, s := range steps {
		if knownActions[s.Action] {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("manual script has no usable steps")
	}
	return usable, nil
}
