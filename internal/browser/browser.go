// Package browser drives UI steps through a Chrome instance using chromedp.
//
// Every Driver owns its own browser (or, against a remote browser, its own
// browser context), so cookies and storage never cross scenario runs.
//
// Locators are opaque to scenarios and interpreted here:
//
//	css=<selector>     document.querySelector
//	xpath=<expr>       XPath, also the default when no prefix is given
//	id=<id>            element id
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/roach88/stepwise/internal/step"
)

// Options configures how browsers are started.
type Options struct {
	// Headless runs Chrome without a window.
	Headless bool

	// RemoteURL connects to an already running browser's DevTools endpoint
	// (ws://...) instead of launching one.
	RemoteURL string

	// ExecPath overrides the Chrome binary. Empty means auto-detect.
	ExecPath string

	// WindowWidth and WindowHeight set the viewport. Zero keeps the default.
	WindowWidth  int
	WindowHeight int

	// Args are extra Chrome flags, "name" or "name=value".
	Args []string

	// StartTimeout bounds browser start-up. Zero means 30s.
	StartTimeout time.Duration

	Logger *slog.Logger
}

// Driver is one browser session. It implements step.UIDriver.
type Driver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

var _ step.UIDriver = (*Driver)(nil)

// Start launches (or connects to) a browser and opens a fresh session.
// ctx bounds start-up only; the session lives until Close.
func Start(ctx context.Context, opts Options) (*Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logf := func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}

	parent := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(logf),
	}
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
		ctxOpts = append(ctxOpts, chromedp.WithNewBrowserContext())
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocatorOptions(opts)...)
	}
	bctx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	started := make(chan error, 1)
	go func() {
		// The first Run on a context allocates the browser.
		started <- chromedp.Run(bctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var err error
	select {
	case err = <-started:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %s", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	logger.Debug("browser session started", "remote", opts.RemoteURL != "")
	return &Driver{ctx: bctx, cancel: cancel, allocCancel: allocCancel}, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		out = append(out, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	for _, arg := range opts.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			out = append(out, chromedp.Flag(name, value))
		} else {
			out = append(out, chromedp.Flag(name, true))
		}
	}
	return out
}

// Close shuts the session down, closing the tab and waiting for the
// browser to exit. Against a remote browser only the browser context is
// disposed.
func (d *Driver) Close() error {
	defer d.allocCancel()
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	if err != nil {
		return fmt.Errorf("close browser session: %w", err)
	}
	return nil
}

// run executes actions on the session's tab, abandoning them when ctx is
// done. Cancelling a derived context stops the actions without closing the
// tab.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	actx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(actx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the page to load.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

// Click clicks the first visible element matching loc.
func (d *Driver) Click(ctx context.Context, loc step.Locator) error {
	sel, opts := ParseLocator(loc)
	return d.run(ctx, chromedp.Click(sel, opts...))
}

// Fill replaces the value of the input matching loc.
func (d *Driver) Fill(ctx context.Context, loc step.Locator, value string) error {
	sel, opts := ParseLocator(loc)
	return d.run(ctx,
		chromedp.Clear(sel, opts...),
		chromedp.SendKeys(sel, value, opts...),
	)
}

// WaitVisible blocks until an element matching loc is visible.
func (d *Driver) WaitVisible(ctx context.Context, loc step.Locator) error {
	sel, opts := ParseLocator(loc)
	return d.run(ctx, chromedp.WaitVisible(sel, opts...))
}

// Text returns the visible text of the element matching loc.
func (d *Driver) Text(ctx context.Context, loc step.Locator) (string, error) {
	sel, opts := ParseLocator(loc)
	var text string
	opts = append(opts, chromedp.NodeVisible)
	if err := d.run(ctx, chromedp.Text(sel, &text, opts...)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ParseLocator splits a locator into a chromedp selector and query options.
func ParseLocator(loc step.Locator) (string, []chromedp.QueryOption) {
	s := string(loc)
	switch {
	case strings.HasPrefix(s, "css="):
		return strings.TrimPrefix(s, "css="), []chromedp.QueryOption{chromedp.ByQuery}
	case strings.HasPrefix(s, "id="):
		return "#" + strings.TrimPrefix(s, "id="), []chromedp.QueryOption{chromedp.ByID}
	case strings.HasPrefix(s, "xpath="):
		return strings.TrimPrefix(s, "xpath="), []chromedp.QueryOption{chromedp.BySearch}
	default:
		return s, []chromedp.QueryOption{chromedp.BySearch}
	}
}
