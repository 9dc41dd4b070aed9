// ABOUTME: Combines the manual provider client and the headless executor into the pipeline's Checker.
package browser

import (
	"context"

	"github.com/2389-research/nichescout/pipeline"
)

// Checker wires manual lookup and browser execution behind the pipeline's
// Checker interface.
type Checker struct {
	Manuals  *ManualClient
	Executor *Executor
}

var _ pipeline.Checker = (*Checker)(nil)

// GetManual fetches the verified interaction script for a task, "" when absent.
func (c *Checker) GetManual(ctx context.Context, task string) (string, error) {
	if c.Manuals == nil {
		return "", nil
	}
	return c.Manuals.GetManual(ctx, task)
}

// Execute runs one competitor check in the headless browser.
func (c *Checker) Execute(ctx context.Context, target pipeline.CompetitorTarget, keyword, manual string) (pipeline.CompetitorCheck, error) {
	return c.Executor.Execute(ctx, target, keyword, manual)
}
