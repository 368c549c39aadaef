package bridge

import (
	"context"
	"sync"
)

type publishCall struct {
	topic   string
	payload string
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
	// onPublish runs after a successful publish, e.g. to simulate a device reply.
	onPublish func(topic, payload string)
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	p.calls = append(p.calls, publishCall{topic: topic, payload: string(payload)})
	err, hook := p.err, p.onPublish
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(topic, string(payload))
	}
	return nil
}

func (p *fakePublisher) published() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

type sent struct {
	dest string
	n    Notification
}

type fakeSink struct {
	mu    sync.Mutex
	sent  []sent
	err   error
	block bool
	calls int
}

func (s *fakeSink) Send(ctx context.Context, dest string, n Notification) error {
	s.mu.Lock()
	s.calls++
	block, err := s.block, s.err
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, sent{dest: dest, n: n})
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) messages() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

func (s *fakeSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingNotifier captures what the loop hands off, synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	dest *Destination
	got  []Notification
}

func (r *recordingNotifier) Notify(n Notification) error {
	if _, ok := r.dest.Current(); !ok {
		return ErrNoDestination
	}
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

func f64(v float64) *float64 { return &v }
