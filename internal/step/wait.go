package step

import (
	"context"
	"time"

	"github.com/roach88/stepwise/internal/scenario"
)

// DefaultPollInterval is used when a wait step leaves interval_ms unset.
const DefaultPollInterval = 250 * time.Millisecond

// doWait polls the condition until it holds or ctx is done. Each poll runs
// against a scratch copy of the context so captures from a failed poll never
// leak; the captures of the successful poll are returned as effects.
func doWait(ctx context.Context, w *scenario.Wait, env *Env, prog *progress) (Effects, error) {
	interval := DefaultPollInterval
	if w.IntervalMs > 0 {
		interval = time.Duration(w.IntervalMs) * time.Millisecond
	}

	for polls := 1; ; polls++ {
		fx, err := pollOnce(ctx, w, env)
		if err == nil {
			env.logger().Debug("wait condition met", "polls", polls)
			return fx, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f := Classify(err)
		if f.Kind == scenario.FailureHarnessFault {
			return nil, f
		}
		prog.note(f.Detail)

		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

func pollOnce(ctx context.Context, w *scenario.Wait, env *Env) (Effects, error) {
	scratch := env.Vars.Clone()
	fx := Effects{}

	if w.HTTP != nil {
		got, err := doHTTP(ctx, w.HTTP, env, scratch)
		if err != nil {
			return nil, err
		}
		got.Apply(scratch)
		fx.merge(got)
	}
	if w.UI != nil {
		got, err := doUI(ctx, w.UI, env, scratch)
		if err != nil {
			return nil, err
		}
		got.Apply(scratch)
		fx.merge(got)
	}
	if w.Assert != nil {
		if err := doAssert(w.Assert, scratch); err != nil {
			return nil, err
		}
	}
	return fx, nil
}
