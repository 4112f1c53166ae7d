package application

import (
	"sync"
	"sync/atomic"

	"camera-color-judge/internal/domain"
)

// FrameSlot holds the latest published frame. Store overwrites, there is
// no queue; an unread frame is simply replaced.
type FrameSlot struct {
	frame     atomic.Pointer[domain.Frame]
	published atomic.Uint64
}

// Store publishes f as the latest frame
func (s *FrameSlot) Store(f *domain.Frame) {
	s.frame.Store(f)
	s.published.Add(1)
}

// Load returns the latest frame or nil
func (s *FrameSlot) Load() *domain.Frame {
	return s.frame.Load()
}

// Clear drops the held frame
func (s *FrameSlot) Clear() {
	s.frame.Store(nil)
}

// Published returns how many frames were stored since creation
func (s *FrameSlot) Published() uint64 {
	return s.published.Load()
}

// PositionSlot holds the latest query position
type PositionSlot struct {
	pos atomic.Pointer[domain.QueryPosition]
}

// Store replaces the position
func (s *PositionSlot) Store(pos domain.QueryPosition) {
	s.pos.Store(&pos)
}

// Load returns the latest position, the origin if none was stored
func (s *PositionSlot) Load() domain.QueryPosition {
	if p := s.pos.Load(); p != nil {
		return *p
	}
	return domain.QueryPosition{}
}

// ResultSlot holds the latest classification result
type ResultSlot struct {
	result atomic.Pointer[domain.ClassificationResult]
}

// Store replaces the result
func (s *ResultSlot) Store(r domain.ClassificationResult) {
	s.result.Store(&r)
}

// Load returns the latest result, nil before the first sample
func (s *ResultSlot) Load() *domain.ClassificationResult {
	return s.result.Load()
}

// Clear forgets the held result
func (s *ResultSlot) Clear() {
	s.result.Store(nil)
}

// UpdateBus fans updates out to render surfaces. Each subscriber has a
// single buffered slot; Publish never blocks and drops the update for a
// subscriber that has not consumed the previous one.
type UpdateBus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan domain.Update
	dropped atomic.Uint64
}

// NewUpdateBus creates an empty bus
func NewUpdateBus() *UpdateBus {
	return &UpdateBus{subs: make(map[int]chan domain.Update)}
}

// Subscribe registers a subscriber. The returned cancel function closes
// the channel and is safe to call more than once.
func (b *UpdateBus) Subscribe() (<-chan domain.Update, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan domain.Update, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish offers u to every subscriber without blocking
func (b *UpdateBus) Publish(u domain.Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- u:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many updates were dropped for busy subscribers
func (b *UpdateBus) Dropped() uint64 {
	return b.dropped.Load()
}
