package engine

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// preflightTimeout bounds the reachability probe.
const preflightTimeout = 10 * time.Second

// Preflight probes the target once per process. Any HTTP response counts as
// reachable; only transport failures are reported.
type Preflight struct {
	baseURL string
	client  *http.Client

	once sync.Once
	err  error
}

// NewPreflight creates a probe for baseURL. A nil client uses http.DefaultClient.
func NewPreflight(baseURL string, client *http.Client) *Preflight {
	if client == nil {
		client = http.DefaultClient
	}
	return &Preflight{baseURL: baseURL, client: client}
}

// Check runs the probe on first call and returns the cached outcome on every
// later call.
func (p *Preflight) Check(ctx context.Context) error {
	p.once.Do(func() {
		p.err = p.probe(ctx)
	})
	return p.err
}

func (p *Preflight) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return NewUnreachableError(p.baseURL, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return NewUnreachableError(p.baseURL, err)
	}
	resp.Body.Close()
	return nil
}
