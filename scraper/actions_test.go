package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/firescrape/browser"
	"github.com/use-agent/firescrape/models"
)

func openShopPage(t *testing.T) (browser.Page, func() []string) {
	t.Helper()
	fb := newFakeBrowser()
	page, err := fb.NewPage(context.Background(), browser.PageOptions{})
	require.NoError(t, err)
	require.NoError(t, page.Navigate(context.Background(), shopURL))
	t.Cleanup(func() { _ = page.Close() })
	return page, fb.Calls
}

func TestExecutor_DurationWaitIgnoresActionTimeout(t *testing.T) {
	page, _ := openShopPage(t)
	e := Executor{ActionTimeout: 10 * time.Millisecond}

	start := time.Now()
	warnings, err := e.Run(context.Background(), page, []models.Action{{Type: models.ActionWait, Milliseconds: 40}})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestExecutor_ElementNotFound(t *testing.T) {
	page, calls := openShopPage(t)
	e := Executor{ActionTimeout: 20 * time.Millisecond}

	_, err := e.Run(context.Background(), page, []models.Action{
		{Type: models.ActionClick, Selector: "#more"},
		{Type: models.ActionInput, Selector: "#nope", Text: "x"},
		{Type: models.ActionClick, Selector: "#more"},
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeActionFailed, models.CodeOf(err))
	assert.True(t, models.HasCode(err, models.ErrCodeElementNotFound))
	assert.ErrorIs(t, err, browser.ErrElementNotFound)
	assert.Contains(t, err.Error(), "action 1 (type) failed after 1 completed")
	assert.Equal(t, []string{"navigate " + shopURL, "click #more", "type #nope x"}, calls())
}

func TestExecutor_OtherFailure(t *testing.T) {
	fb := newFakeBrowser()
	boom := errors.New("element is covered by another element")
	fb.Fail["#more"] = boom
	page, err := fb.NewPage(context.Background(), browser.PageOptions{})
	require.NoError(t, err)
	defer page.Close()
	require.NoError(t, page.Navigate(context.Background(), shopURL))

	_, err = Executor{}.Run(context.Background(), page, []models.Action{{Type: models.ActionClick, Selector: "#more"}})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeActionFailed, models.CodeOf(err))
	assert.False(t, models.HasCode(err, models.ErrCodeElementNotFound))
	assert.ErrorIs(t, err, boom)
}

func TestExecutor_BestEffortWarnings(t *testing.T) {
	page, calls := openShopPage(t)
	e := Executor{ActionTimeout: 20 * time.Millisecond}

	warnings, err := e.Run(context.Background(), page, []models.Action{
		{Type: models.ActionClick, Selector: "#a", BestEffort: true},
		{Type: models.ActionWait, Selector: "#b", BestEffort: true},
		{Type: models.ActionClick, Selector: "#more"},
	})
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, models.ErrCodeElementNotFound, warnings[0].Code)
	assert.Contains(t, warnings[1].Message, "action 1 (wait)")
	assert.Contains(t, calls(), "click #more")
}

func TestExecutor_SelectorWaitUsesMilliseconds(t *testing.T) {
	page, _ := openShopPage(t)
	e := Executor{ActionTimeout: time.Hour}

	start := time.Now()
	_, err := e.Run(context.Background(), page, []models.Action{{Type: models.ActionWait, Selector: ".never", Milliseconds: 30}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecutor_DeadlineIsTimeout(t *testing.T) {
	page, _ := openShopPage(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := Executor{ActionTimeout: time.Second}.Run(ctx, page, []models.Action{
		{Type: models.ActionClick, Selector: "#never", BestEffort: true},
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
}

func TestExecutor_Empty(t *testing.T) {
	page, _ := openShopPage(t)
	warnings, err := Executor{}.Run(context.Background(), page, nil)
	assert.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestExecutor_TypeIntoFocusedElement(t *testing.T) {
	page, calls := openShopPage(t)
	e := Executor{ActionTimeout: 50 * time.Millisecond}

	warnings, err := e.Run(context.Background(), page, []models.Action{
		{Type: models.ActionClick, Selector: "#q"},
		{Type: models.ActionInput, Text: "chisel"},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Contains(t, calls(), "type  chisel")

	html, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, `value="chisel"`)
}
