package step

import (
	"context"
	"errors"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/roach88/stepwise/internal/execctx"
	"github.com/roach88/stepwise/internal/scenario"
)

// Locator is an opaque element handle. Only the UI driver interprets it.
type Locator string

// UIDriver drives one browser session. Every call must honor ctx: when the
// step deadline fires the call is abandoned.
type UIDriver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, loc Locator) error
	Fill(ctx context.Context, loc Locator, value string) error
	WaitVisible(ctx context.Context, loc Locator) error
	Text(ctx context.Context, loc Locator) (string, error)
}

func doUI(ctx context.Context, a *scenario.UIAction, env *Env, vars *execctx.Context) (Effects, error) {
	if env.UI == nil {
		return nil, Fault("no browser session for ui step")
	}

	loc, err := vars.Expand(a.Locator)
	if err != nil {
		return nil, err
	}

	switch a.Action {
	case scenario.UINavigate:
		target, err := vars.Expand(a.URL)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(target, "://") {
			target = joinURL(env.BaseURL, target)
		}
		return nil, driverErr(ctx, "navigate", env.UI.Navigate(ctx, target))
	case scenario.UIClick:
		return nil, driverErr(ctx, "click "+loc, env.UI.Click(ctx, Locator(loc)))
	case scenario.UIFill:
		value, err := vars.Expand(a.Value)
		if err != nil {
			return nil, err
		}
		return nil, driverErr(ctx, "fill "+loc, env.UI.Fill(ctx, Locator(loc), value))
	case scenario.UIWaitVisible:
		return nil, driverErr(ctx, "wait_visible "+loc, env.UI.WaitVisible(ctx, Locator(loc)))
	case scenario.UIText:
		text, err := env.UI.Text(ctx, Locator(loc))
		if err != nil {
			return nil, driverErr(ctx, "text "+loc, err)
		}
		if a.ExpectText != "" {
			want, err := vars.Expand(a.ExpectText)
			if err != nil {
				return nil, err
			}
			if !strings.Contains(text, want) {
				return nil, Assertion(&AssertionError{
					Op:       "expect_text",
					Path:     loc,
					Expected: "text containing " + want,
					Actual:   excerpt(text, 120),
				})
			}
		}
		if a.Capture != "" {
			return Effects{a.Capture: ldvalue.String(text)}, nil
		}
		return nil, nil
	default:
		return nil, Fault("unknown ui action %q", a.Action)
	}
}

// driverErr classifies a UI driver error. Driver failures are transient:
// the element may not be there yet.
func driverErr(ctx context.Context, what string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: scenario.FailureTransient, Detail: what + ": " + err.Error(), Err: err}
}
