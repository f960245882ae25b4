package capture

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
)

// Chain installs the first of several hooks that succeeds.
type Chain struct {
	hooks []Hook

	mu     sync.Mutex
	active atomic.Pointer[Hook]
}

var (
	_ Hook    = (*Chain)(nil)
	_ Decoder = (*Chain)(nil)
)

// NewChain tries hooks in order on each Install.
func NewChain(hooks ...Hook) *Chain {
	return &Chain{hooks: hooks}
}

// Install implements Hook.
func (c *Chain) Install(sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for i := range c.hooks {
		h := c.hooks[i]
		// Set before Install so the first event decodes with this hook.
		c.active.Store(&h)
		if err := h.Install(sink); err != nil {
			log.Debug(log.CatCapture, "Keyboard hook unavailable, trying next", "error", err)
			errs = append(errs, err)
			continue
		}
		return nil
	}
	c.active.Store(nil)
	if len(errs) == 0 {
		return ErrUnsupported
	}
	return errors.Join(errs...)
}

// Uninstall implements Hook.
func (c *Chain) Uninstall() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.active.Load()
	if h == nil {
		return nil
	}
	return (*h).Uninstall()
}

// Active returns the installed hook, nil when none is.
func (c *Chain) Active() Hook {
	if h := c.active.Load(); h != nil {
		return *h
	}
	return nil
}

// Decode implements Decoder using the installed hook's code space.
func (c *Chain) Decode(r Raw) (keys.Key, error) {
	if d, ok := c.Active().(Decoder); ok {
		return d.Decode(r)
	}
	return VirtualKeyDecoder(r)
}
