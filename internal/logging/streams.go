package logging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrStreamExists is returned when a key is registered twice.
	ErrStreamExists = errors.New("log stream already registered")
	// ErrStreamUnknown is returned when appending to an unregistered key.
	ErrStreamUnknown = errors.New("log stream not registered")
)

// Stream is a read-only copy of one named log stream.
type Stream struct {
	Key      string
	Contents string
}

// StreamSet is an ordered collection of named, append-only text streams.
// Appends are serialized; snapshots observe every append that returned
// before the call.
type StreamSet struct {
	mu      sync.Mutex
	cond    *sync.Cond
	order   []string
	streams map[string]*strings.Builder
	version uint64
}

// NewStreamSet constructs an empty stream set.
func NewStreamSet() *StreamSet {
	s := &StreamSet{streams: make(map[string]*strings.Builder)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Register creates an empty stream. Keys must be registered exactly once.
func (s *StreamSet) Register(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[key]; ok {
		return fmt.Errorf("%w: %q", ErrStreamExists, key)
	}
	s.streams[key] = &strings.Builder{}
	s.order = append(s.order, key)
	s.bumpLocked()
	return nil
}

// Append adds line and a trailing newline to the stream registered as key.
func (s *StreamSet) Append(key, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.streams[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrStreamUnknown, key)
	}
	b.WriteString(line)
	b.WriteByte('\n')
	s.bumpLocked()
	return nil
}

// Snapshot returns every stream in registration order.
func (s *StreamSet) Snapshot() []Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stream, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, Stream{Key: key, Contents: s.streams[key].String()})
	}
	return out
}

// Contents returns the text of a single stream.
func (s *StreamSet) Contents(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.streams[key]
	if !ok {
		return "", false
	}
	return b.String(), true
}

// Version increases with every registration and append.
func (s *StreamSet) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Wait blocks until the version moves past since or ctx ends, and returns
// the current version.
func (s *StreamSet) Wait(ctx context.Context, since uint64) (uint64, error) {
	stop := make(chan struct{})
	defer close(stop)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-stop:
			}
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.version <= since {
		if err := ctx.Err(); err != nil {
			return s.version, err
		}
		s.cond.Wait()
	}
	return s.version, nil
}

func (s *StreamSet) bumpLocked() {
	s.version++
	s.cond.Broadcast()
}
