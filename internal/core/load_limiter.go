package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrTooManyLoads is returned when every decode slot stays taken for the
// whole admission wait.
var ErrTooManyLoads = errors.New("too many concurrent loads, please try again later")

const (
	// DefaultMaxConcurrentLoads caps parallel file decodes.
	DefaultMaxConcurrentLoads = 4

	// DefaultMaxLoadWait is how long a load queues for a slot.
	DefaultMaxLoadWait = 10 * time.Second
)

// LoadInfo names the upload a decode slot is held for.
type LoadInfo struct {
	SessionID string `json:"sessionId"`
	Preset    string `json:"preset"`
	FileName  string `json:"fileName"`
	Bytes     int    `json:"bytes"`
}

// ActiveLoad is one decode holding a slot.
type ActiveLoad struct {
	LoadInfo
	Started time.Time `json:"started"`
}

// LoadStatus is a snapshot of the limiter for the health and load endpoints.
type LoadStatus struct {
	InFlight      int          `json:"inFlight"`
	Waiting       int          `json:"waiting"`
	Available     int          `json:"available"`
	MaxConcurrent int          `json:"maxConcurrent"`
	Loads         []ActiveLoad `json:"loads"`
}

// LoadLimiter admits a bounded number of file decodes. A decode holds the
// upload and its record set in memory, so loads beyond the limit queue for
// up to maxWait and then fail with ErrTooManyLoads.
type LoadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	now     func() time.Time

	mu      sync.Mutex
	seq     uint64
	waiting int
	loads   map[uint64]ActiveLoad
	drained []chan struct{}
}

// NewLoadLimiter returns a limiter for maxConcurrent decodes. Zero values
// fall back to the defaults.
func NewLoadLimiter(maxConcurrent int, maxWait time.Duration) *LoadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxLoadWait
	}
	return &LoadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		now:     time.Now,
		loads:   make(map[uint64]ActiveLoad),
	}
}

// Acquire queues for a decode slot for info. On success it returns the
// function that gives the slot back; calling it more than once is a no-op.
// A cancelled ctx is reported as ctx.Err(), an expired wait as
// ErrTooManyLoads.
func (l *LoadLimiter) Acquire(ctx context.Context, info LoadInfo) (func(), error) {
	select {
	case l.slots <- struct{}{}:
		return l.admit(info), nil
	default:
	}

	l.mu.Lock()
	l.waiting++
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.waiting--
		l.mu.Unlock()
	}()

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return l.admit(info), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooManyLoads
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *LoadLimiter) TryAcquire(info LoadInfo) (func(), bool) {
	select {
	case l.slots <- struct{}{}:
		return l.admit(info), true
	default:
		return nil, false
	}
}

func (l *LoadLimiter) admit(info LoadInfo) func() {
	l.mu.Lock()
	l.seq++
	id := l.seq
	l.loads[id] = ActiveLoad{LoadInfo: info, Started: l.now()}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.finish(id) })
	}
}

func (l *LoadLimiter) finish(id uint64) {
	l.mu.Lock()
	delete(l.loads, id)
	if len(l.loads) == 0 {
		for _, ch := range l.drained {
			close(ch)
		}
		l.drained = nil
	}
	l.mu.Unlock()
	<-l.slots
}

// InFlight returns the number of decodes holding a slot.
func (l *LoadLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loads)
}

// MaxConcurrent returns the slot count.
func (l *LoadLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Drain blocks until no decode holds a slot or ctx is done.
func (l *LoadLimiter) Drain(ctx context.Context) error {
	l.mu.Lock()
	if len(l.loads) == 0 {
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.drained = append(l.drained, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status lists the decodes in flight, oldest first.
func (l *LoadLimiter) Status() LoadStatus {
	l.mu.Lock()
	loads := make([]ActiveLoad, 0, len(l.loads))
	for _, load := range l.loads {
		loads = append(loads, load)
	}
	st := LoadStatus{
		InFlight:      len(l.loads),
		Waiting:       l.waiting,
		Available:     cap(l.slots) - len(l.loads),
		MaxConcurrent: cap(l.slots),
	}
	l.mu.Unlock()

	slices.SortFunc(loads, func(a, b ActiveLoad) int {
		return a.Started.Compare(b.Started)
	})
	st.Loads = loads
	return st
}
