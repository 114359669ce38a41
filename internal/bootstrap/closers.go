package bootstrap

import (
	"sync"

	"go.uber.org/zap"
)

// Closers remembers connections as providers open them.
type Closers struct {
	mu  sync.Mutex
	fns []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

func (c *Closers) Add(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, namedCloser{name: name, fn: fn})
}

// CloseAll runs every closer once in reverse order and logs failures.
func (c *Closers) CloseAll(log *zap.Logger) {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i].fn(); err != nil {
			log.Warn("close "+fns[i].name, zap.Error(err))
		}
	}
}
