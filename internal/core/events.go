package core

import "context"

type ctxKeyObserver struct{}

// WithObserver attaches a progress observer to the context. Operations
// called with the returned context report stage events to it.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyObserver{}, obs)
}

// ObserverFrom extracts the observer from the context.
func ObserverFrom(ctx context.Context) Observer {
	if ctx != nil {
		if v := ctx.Value(ctxKeyObserver{}); v != nil {
			if obs, ok := v.(Observer); ok {
				return obs
			}
		}
	}
	return nil
}

func notify(ctx context.Context, ev Event) {
	if obs := ObserverFrom(ctx); obs != nil {
		obs(ev)
	}
}
