package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/firescrape/browser"
	"github.com/use-agent/firescrape/models"
)

// DefaultActionTimeout bounds how long an action waits for its element.
const DefaultActionTimeout = 5 * time.Second

// Executor replays actions against a page strictly in order. Each action
// either succeeds, fails, or is skipped because an earlier one aborted the
// sequence.
type Executor struct {
	// ActionTimeout bounds element lookups. It does not apply to plain
	// duration waits.
	ActionTimeout time.Duration
}

// Run executes actions on page. Failed best-effort actions are returned as
// warnings and the sequence carries on. Any other failure stops the
// sequence with an ACTION_FAILED error whose cause is the failing step.
// If ctx expires the error is SCRAPE_TIMEOUT.
func (e Executor) Run(ctx context.Context, page browser.Page, actions []models.Action) ([]models.ErrorDetail, error) {
	var warnings []models.ErrorDetail
	completed := 0

	for i, a := range actions {
		err := e.step(ctx, page, a)
		if err == nil {
			completed++
			continue
		}

		if ctx.Err() != nil {
			return warnings, models.NewScrapeError(
				models.ErrCodeTimeout,
				fmt.Sprintf("deadline exceeded during action %d (%s)", i, a.Type),
				ctx.Err(),
			)
		}

		cause := stepError(i, a, err)
		if a.BestEffort {
			slog.Debug("best-effort action failed", "index", i, "action", a.String(), "error", err)
			warnings = append(warnings, *cause.ToDetail())
			continue
		}

		return warnings, models.NewScrapeError(
			models.ErrCodeActionFailed,
			fmt.Sprintf("action %d (%s) failed after %d completed", i, a.Type, completed),
			cause,
		)
	}
	return warnings, nil
}

// step runs a single action. Element lookups get their own deadline so one
// missing selector cannot consume the whole session.
func (e Executor) step(ctx context.Context, page browser.Page, a models.Action) error {
	if a.Type == models.ActionWait && a.Selector == "" {
		return sleep(ctx, time.Duration(a.Milliseconds)*time.Millisecond)
	}

	timeout := e.ActionTimeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	if a.Type == models.ActionWait && a.Milliseconds > 0 {
		timeout = time.Duration(a.Milliseconds) * time.Millisecond
	}
	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch a.Type {
	case models.ActionClick:
		return page.Click(actionCtx, a.Selector)
	case models.ActionInput:
		return page.Type(actionCtx, a.Selector, a.Text)
	case models.ActionScroll:
		return page.Scroll(actionCtx, browser.ScrollTarget{Selector: a.Selector, Pixels: a.Amount})
	case models.ActionWait:
		return page.WaitFor(actionCtx, a.Selector)
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// stepError classifies the failure of action i.
func stepError(i int, a models.Action, err error) *models.ScrapeError {
	if errors.Is(err, browser.ErrElementNotFound) {
		return models.NewScrapeError(
			models.ErrCodeElementNotFound,
			fmt.Sprintf("action %d (%s): no element matches %q", i, a.Type, a.Selector),
			err,
		)
	}
	return models.NewScrapeError(
		models.ErrCodeActionFailed,
		fmt.Sprintf("action %d (%s): %v", i, a.Type, err),
		err,
	)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
