package sourcemap

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	defaultResolver atomic.Pointer[Resolver]
	initOnce        sync.Once
	initErr         error
)

// Initialize configures the process-wide resolver. Only the first call has
// an effect; later calls return the first call's error.
func Initialize(opts Options) error {
	initOnce.Do(func() {
		var r *Resolver
		r, initErr = NewResolver(opts)
		if initErr == nil {
			defaultResolver.Store(r)
		}
	})
	return initErr
}

// Default returns the process-wide resolver.
func Default() (*Resolver, error) {
	r := defaultResolver.Load()
	if r == nil {
		return nil, fmt.Errorf("sourcemap not initialized - call Initialize() first")
	}
	return r, nil
}
