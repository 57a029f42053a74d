package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/stepwise/internal/step"
)

// FakeUI is a scripted UI driver. Elements listed in Visible can be clicked,
// filled and read; anything else fails as not found.
type FakeUI struct {
	mu      sync.Mutex
	Visible map[step.Locator]string
	Calls   []string
	Closed  bool
}

// NewFakeUI creates a driver where the given locators are present with the
// given text.
func NewFakeUI(visible map[step.Locator]string) *FakeUI {
	if visible == nil {
		visible = make(map[step.Locator]string)
	}
	return &FakeUI{Visible: visible}
}

func (f *FakeUI) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *FakeUI) find(loc step.Locator) (string, error) {
	text, ok := f.Visible[loc]
	if !ok {
		return "", fmt.Errorf("no element matches %s", loc)
	}
	return text, nil
}

func (f *FakeUI) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate %s", url)
	return nil
}

func (f *FakeUI) Click(_ context.Context, loc step.Locator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("click %s", loc)
	_, err := f.find(loc)
	return err
}

func (f *FakeUI) Fill(_ context.Context, loc step.Locator, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fill %s %s", loc, value)
	if _, err := f.find(loc); err != nil {
		return err
	}
	f.Visible[loc] = value
	return nil
}

func (f *FakeUI) WaitVisible(_ context.Context, loc step.Locator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait_visible %s", loc)
	_, err := f.find(loc)
	return err
}

func (f *FakeUI) Text(_ context.Context, loc step.Locator) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("text %s", loc)
	return f.find(loc)
}

// Close marks the driver closed.
func (f *FakeUI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeUI) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
