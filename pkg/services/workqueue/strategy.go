package workqueue

// ConcurrencyStrategy controls how tasks are allowed to start concurrently.
// The queue calls every method with its lock held, so implementations need
// no locking of their own.
type ConcurrencyStrategy interface {
	// CanStart returns true if a task with the given key can start now.
	CanStart(key string) bool
	// OnStart is called when a task starts.
	OnStart(key string)
	// OnComplete is called when a task finishes.
	OnComplete(key string)
}

// ThrottledStrategy allows up to maxConcurrent tasks to run in parallel.
type ThrottledStrategy struct {
	maxConcurrent int
	running       int
}

// NewThrottledStrategy caps concurrently running tasks at maxConcurrent.
// Values below 1 are treated as 1.
func NewThrottledStrategy(maxConcurrent int) *ThrottledStrategy {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ThrottledStrategy{maxConcurrent: maxConcurrent}
}

// NewSerializedStrategy runs one task at a time.
func NewSerializedStrategy() *ThrottledStrategy {
	return NewThrottledStrategy(1)
}

func (s *ThrottledStrategy) CanStart(string) bool {
	return s.running < s.maxConcurrent
}

func (s *ThrottledStrategy) OnStart(string) {
	s.running++
}

func (s *ThrottledStrategy) OnComplete(string) {
	if s.running > 0 {
		s.running--
	}
}

// KeyedStrategy adds per-key mutual exclusion on top of another strategy.
// Tasks with an empty key are only subject to the inner strategy.
type KeyedStrategy struct {
	inner  ConcurrencyStrategy
	active map[string]bool
}

// NewKeyedStrategy wraps inner so that at most one task per key runs.
func NewKeyedStrategy(inner ConcurrencyStrategy) *KeyedStrategy {
	return &KeyedStrategy{
		inner:  inner,
		active: make(map[string]bool),
	}
}

func (s *KeyedStrategy) CanStart(key string) bool {
	if key != "" && s.active[key] {
		return false
	}
	return s.inner.CanStart(key)
}

func (s *KeyedStrategy) OnStart(key string) {
	if key != "" {
		s.active[key] = true
	}
	s.inner.OnStart(key)
}

func (s *KeyedStrategy) OnComplete(key string) {
	delete(s.active, key)
	s.inner.OnComplete(key)
}
