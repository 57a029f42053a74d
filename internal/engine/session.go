package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"

	"github.com/roach88/stepwise/internal/step"
)

// UISession is a browser session bound to one scenario run.
type UISession interface {
	step.UIDriver
	Close() error
}

// UIFactory starts a new browser session. Each call must return an
// independent browser: no cookies, storage or tabs shared with any other
// session.
type UIFactory func(ctx context.Context) (UISession, error)

// Session is the isolated set of resources one scenario run executes with.
// It lives from Acquire to Release and is never handed to two runs.
type Session struct {
	ID   int64
	HTTP *http.Client
	UI   UISession

	transport *http.Transport
}

// SessionPool bounds how many sessions exist at once. Sessions are created
// fresh on Acquire and torn down on Release; the pool only limits
// concurrency.
type SessionPool struct {
	slots  chan struct{}
	ui     UIFactory
	nextID atomic.Int64
	logger *slog.Logger
}

// NewSessionPool creates a pool of at most size live sessions. ui may be
// nil when no scenario needs a browser.
func NewSessionPool(size int, ui UIFactory) *SessionPool {
	if size < 1 {
		size = 1
	}
	return &SessionPool{
		slots:  make(chan struct{}, size),
		ui:     ui,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Size returns the pool capacity.
func (p *SessionPool) Size() int {
	return cap(p.slots)
}

// InUse returns how many sessions are currently held.
func (p *SessionPool) InUse() int {
	return len(p.slots)
}

// Acquire waits for a free slot and builds a session. When withUI is set a
// browser is started as part of the session; if that fails the slot is
// returned and a BROWSER_START RuntimeError is reported.
func (p *SessionPool) Acquire(ctx context.Context, withUI bool) (*Session, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, &RuntimeError{
			Code:    ErrCodeSessionUnavailable,
			Message: fmt.Sprintf("no session available: %v", ctx.Err()),
			Err:     ctx.Err(),
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	s := &Session{
		ID:        p.nextID.Add(1),
		HTTP:      &http.Client{Jar: jar, Transport: transport},
		transport: transport,
	}

	if withUI {
		if p.ui == nil {
			<-p.slots
			return nil, NewBrowserStartError(fmt.Errorf("no browser configured"))
		}
		drv, err := p.ui(ctx)
		if err != nil {
			<-p.slots
			return nil, NewBrowserStartError(err)
		}
		s.UI = drv
	}

	p.logger.Debug("session acquired", "session", s.ID, "ui", withUI, "in_use", p.InUse())
	return s, nil
}

// Release tears the session down and frees its slot. It is safe to call
// with a nil session.
func (p *SessionPool) Release(s *Session) {
	if s == nil {
		return
	}
	if s.UI != nil {
		if err := s.UI.Close(); err != nil {
			p.logger.Warn("closing browser session failed", "session", s.ID, "error", err)
		}
	}
	s.transport.CloseIdleConnections()
	<-p.slots
	p.logger.Debug("session released", "session", s.ID, "in_use", p.InUse())
}

// WithSession acquires a session, calls fn and releases the session
// whatever fn returns, including on panic.
func (p *SessionPool) WithSession(ctx context.Context, withUI bool, fn func(*Session) error) error {
	s, err := p.Acquire(ctx, withUI)
	if err != nil {
		return err
	}
	defer p.Release(s)
	return fn(s)
}
