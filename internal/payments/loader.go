package payments

import (
	"context"
	"sync/atomic"

	"github.com/angelmondragon/viylo-storefront/internal/checkout"
)

type loaded struct {
	collaborator checkout.Collaborator
}

// Loader publishes the payment collaborator once it becomes available.
// Until then Resolve reports false and widgets fall back.
type Loader struct {
	current atomic.Pointer[loaded]
}

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Set(c checkout.Collaborator) {
	if c == nil {
		l.current.Store(nil)
		return
	}
	l.current.Store(&loaded{collaborator: c})
}

func (l *Loader) Resolve() (checkout.Collaborator, bool) {
	cur := l.current.Load()
	if cur == nil {
		return nil, false
	}
	return cur.collaborator, true
}

// LoadAsync runs init in the background and publishes its result.
// The returned channel is closed once init finished, successfully or not.
func (l *Loader) LoadAsync(ctx context.Context, init func(context.Context) (checkout.Collaborator, error), onErr func(error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := init(ctx)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		l.Set(c)
	}()
	return done
}
