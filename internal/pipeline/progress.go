// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

// Event names delivered to a Sink.
const (
	EventProgress = "search-progress"
	EventResponse = "question-response"
	EventError    = "error"
)

// ErrOutOfOrder is returned when a stage is emitted twice, out of order,
// or after the question has terminated.
var ErrOutOfOrder = errors.New("progress event out of order")

// Sink delivers named events to whoever asked the question.
type Sink interface {
	Send(event string, payload any) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(event string, payload any) error

// Send calls f.
func (f SinkFunc) Send(event string, payload any) error { return f(event, payload) }

// Progress guards the event stream of one question: each stage at most
// once and strictly in order, then exactly one terminal event.
type Progress struct {
	sink   Sink
	logger *zap.Logger

	mu         sync.Mutex
	last       int
	terminated bool
}

// NewProgress returns a Progress writing to sink. A nil sink drops events.
func NewProgress(sink Sink, logger *zap.Logger) *Progress {
	if sink == nil {
		sink = SinkFunc(func(string, any) error { return nil })
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Progress{sink: sink, logger: logger, last: -1}
}

// Emit reports entry into stage.
func (p *Progress) Emit(stage types.Stage, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order := stage.Order()
	if p.terminated || order < 0 || order <= p.last {
		return fmt.Errorf("%w: %s", ErrOutOfOrder, stage)
	}
	p.last = order
	p.send(EventProgress, types.ProgressEvent{Stage: stage, Message: message})
	return nil
}

// Complete delivers the answer and closes the stream.
func (p *Progress) Complete(answer types.Answer) error {
	return p.terminate(EventResponse, answer)
}

// Fail delivers a single error event and closes the stream.
func (p *Progress) Fail(message string) error {
	return p.terminate(EventError, types.ErrorEvent{Message: message})
}

// Terminated reports whether a terminal event was sent.
func (p *Progress) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func (p *Progress) terminate(event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminated {
		return fmt.Errorf("%w: %s after terminal event", ErrOutOfOrder, event)
	}
	p.terminated = true
	p.send(event, payload)
	return nil
}

// send delivers an event. A client that went away does not stop the
// pipeline, so delivery failures are only logged.
func (p *Progress) send(event string, payload any) {
	if err := p.sink.Send(event, payload); err != nil {
		p.logger.Debug("progress event not delivered", zap.String("event", event), zap.Error(err))
	}
}

// Event is one recorded Sink delivery.
type Event struct {
	Name    string
	Payload any
}

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Send records the event.
func (r *Recorder) Send(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, Payload: payload})
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Stages returns the stages of the recorded progress events in order.
func (r *Recorder) Stages() []types.Stage {
	var out []types.Stage
	for _, e := range r.Events() {
		if ev, ok := e.Payload.(types.ProgressEvent); ok {
			out = append(out, ev.Stage)
		}
	}
	return out
}

// WriterSink prints progress lines to W for the command line. Answers and
// errors are left to the caller.
type WriterSink struct {
	W io.Writer
}

// Send writes progress events as "[stage] message".
func (s WriterSink) Send(event string, payload any) error {
	ev, ok := payload.(types.ProgressEvent)
	if event != EventProgress || !ok {
		return nil
	}
	_, err := fmt.Fprintf(s.W, "[%s] %s\n", ev.Stage, ev.Message)
	return err
}
