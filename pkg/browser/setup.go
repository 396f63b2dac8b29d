package browser

import (
	"context"
	"encoding/json"

	"github.com/playwright-community/playwright-go"
)

// CaptureLogin opens a visible browser at target so the user can sign in by
// hand, then snapshots the context's storage state. wait blocks until the
// user says the login is finished; returning an error from it aborts the
// capture.
func CaptureLogin(ctx context.Context, driver *Driver, target string, wait func() error) (json.RawMessage, error) {
	browser, browserCtx, page, err := driver.launch(false, "")
	if err != nil {
		return nil, err
	}
	defer browser.Close()

	if _, err := page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, opErr("open login page", err)
	}

	if err := wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, err := browserCtx.StorageState()
	if err != nil {
		return nil, opErr("capture storage state", err)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, opErr("encode storage state", err)
	}
	return raw, nil
}
