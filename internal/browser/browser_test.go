package browser

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/step"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		loc      step.Locator
		selector string
	}{
		{"css=#title", "#title"},
		{"id=submit", "#submit"},
		{"xpath=//button[contains(., 'Manual RFP')]", "//button[contains(., 'Manual RFP')]"},
		{"//a[@href='/rfps']", "//a[@href='/rfps']"},
	}

	for _, tt := range tests {
		t.Run(string(tt.loc), func(t *testing.T) {
			sel, opts := ParseLocator(tt.loc)
			assert.Equal(t, tt.selector, sel)
			assert.Len(t, opts, 1)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	opts := Options{Headless: true, WindowWidth: 1280, WindowHeight: 800, Args: []string{"--no-sandbox", "lang=en-US"}}

	// Defaults, headless, window size and one option per extra arg.
	base := len(allocatorOptions(Options{}))
	assert.Equal(t, base+3, len(allocatorOptions(opts)))
}

func TestStartFailsWithMissingBinary(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Start(ctx, Options{
		Headless:     true,
		ExecPath:     filepath.Join(t.TempDir(), "no-such-chrome"),
		StartTimeout: 5 * time.Second,
	})
	require.Error(t, err)
}

func TestDriverClose_ReportsShutdownError(t *testing.T) {
	var cancelled, allocCancelled bool
	d := &Driver{
		ctx:         context.Background(),
		cancel:      func() { cancelled = true },
		allocCancel: func() { allocCancelled = true },
	}

	err := d.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, chromedp.ErrInvalidContext)
	assert.True(t, cancelled)
	assert.True(t, allocCancelled)
}
