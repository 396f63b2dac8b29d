package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Default browser parameters.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultTimeoutMs      = 30000.0
)

// Driver owns the Playwright runtime shared by every session in the process.
// Launching a session borrows the runtime; stopping the driver tears down
// everything.
type Driver struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool
}

// NewDriver creates an unstarted driver. The Playwright runtime is brought
// up lazily on first launch.
func NewDriver() *Driver {
	return &Driver{}
}

// ensure installs (if needed) and starts the Playwright runtime. Driver
// output is discarded so it cannot pollute CLI output.
func (d *Driver) ensure() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	d.pw = pw
	d.initialized = true
	return nil
}

// launch starts a fresh Chromium context and page. When statePath is
// non-empty the context is seeded with the saved storage state, which is how
// persisted credentials enter the browser.
func (d *Driver) launch(headless bool, statePath string) (playwright.Browser, playwright.BrowserContext, playwright.Page, error) {
	if err := d.ensure(); err != nil {
		return nil, nil, nil, err
	}

	browser, err := d.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	}
	if statePath != "" {
		contextOpts.StorageStatePath = playwright.String(statePath)
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, nil, nil, fmt.Errorf("create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, nil, nil, fmt.Errorf("create page: %w", err)
	}

	page.SetDefaultTimeout(DefaultTimeoutMs)
	return browser, context, page, nil
}

// Stop shuts down the Playwright runtime. Sessions must be closed first.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized || d.pw == nil {
		return nil
	}
	if err := d.pw.Stop(); err != nil {
		return fmt.Errorf("stop playwright: %w", err)
	}
	d.pw = nil
	d.initialized = false
	return nil
}
