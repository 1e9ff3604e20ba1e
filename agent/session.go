package agent

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"datachat/datastore"
	"datachat/model"
	"datachat/pipeline"
	"datachat/prompt"
)

// Session is one conversation. It implements pipeline.Actions. Turns on a
// session run one at a time; readers may snapshot messages at any point.
type Session struct {
	agent  *Agent
	logger *zap.Logger

	mu       sync.RWMutex
	messages []model.Message
	current  string
	store    *datastore.Store

	listenerMu sync.RWMutex
	onChange   func()
	onFinished func(Summary)

	runMu    sync.Mutex
	running  atomic.Bool
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

var _ pipeline.Actions = (*Session)(nil)

func (a *Agent) NewSession() *Session {
	return &Session{
		agent:  a,
		logger: a.logger,
		store:  datastore.New(),
	}
}

// OnChange registers fn to be called after every change to the message
// list. It is called without locks held, from the goroutine running the
// turn.
func (s *Session) OnChange(fn func()) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.onChange = fn
}

// OnFinished registers fn to be called once at the end of every turn cycle.
func (s *Session) OnFinished(fn func(Summary)) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.onFinished = fn
}

func (s *Session) notify() {
	s.listenerMu.RLock()
	fn := s.onChange
	s.listenerMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// Running reports whether a turn is in flight.
func (s *Session) Running() bool { return s.running.Load() }

// Send appends text as a user message and runs the turn loop to completion.
// Concurrent calls are serialized.
func (s *Session) Send(ctx context.Context, text string) Summary {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.send(ctx, text)
}

// TrySend is Send, except that it returns ErrBusy instead of waiting for a
// running turn.
func (s *Session) TrySend(ctx context.Context, text string) (Summary, error) {
	if !s.runMu.TryLock() {
		return Summary{}, ErrBusy
	}
	defer s.runMu.Unlock()
	return s.send(ctx, text), nil
}

// Cancel aborts the running turn, if any.
func (s *Session) Cancel() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) send(ctx context.Context, text string) Summary {
	var cancel context.CancelFunc
	if d := s.agent.cfg.TurnTimeout; d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	s.running.Store(true)

	defer func() {
		s.cancelMu.Lock()
		s.cancel = nil
		s.cancelMu.Unlock()
		cancel()
		s.running.Store(false)
	}()

	s.AddMessage(model.NewMessage(model.RoleUser, text, text))
	sum := s.run(ctx)

	fields := []zap.Field{
		zap.Int("iterations", sum.Iterations),
		zap.Int("invocations", sum.Invocations),
		zap.Bool("final", sum.Final),
	}
	if sum.Err != nil {
		fields = append(fields, zap.Error(sum.Err))
	}
	s.logger.Debug("turn finished", fields...)

	s.listenerMu.RLock()
	fn := s.onFinished
	s.listenerMu.RUnlock()
	if fn != nil {
		fn(sum)
	}
	return sum
}

func (s *Session) ambient() prompt.Ambient {
	return prompt.Ambient{
		CurrentDataset: s.CurrentDataset(),
		FetchedData:    s.FetchedDataListPreview(s.agent.cfg.MaxRowsExposedToModel),
	}
}

// history returns the messages replayed to the model.
func (s *Session) history() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.InHistory() {
			out = append(out, m)
		}
	}
	return out
}

func (s *Session) AddMessage(msg model.Message) {
	if msg.ID == "" {
		msg.ID = model.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Kind == "" {
		msg.Kind = model.KindText
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify()
}

// UpdateMessage merges the non-zero fields of msg into the message with the
// same ID. Streaming is always taken from msg.
func (s *Session) UpdateMessage(msg model.Message) {
	s.editMessage(msg.ID, func(m *model.Message) {
		if msg.Display != "" {
			m.Display = msg.Display
		}
		if msg.Raw != "" {
			m.Raw = msg.Raw
		}
		if msg.Status != "" {
			m.Status = msg.Status
		}
		if msg.Kind != "" {
			m.Kind = msg.Kind
		}
		if msg.Attachment != nil {
			m.Attachment = msg.Attachment
		}
		if !msg.Timestamp.IsZero() {
			m.Timestamp = msg.Timestamp
		}
		m.Streaming = msg.Streaming
	})
}

func (s *Session) editMessage(id string, edit func(m *model.Message)) {
	s.mu.Lock()
	i := slices.IndexFunc(s.messages, func(m model.Message) bool { return m.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return
	}
	edit(&s.messages[i])
	s.mu.Unlock()
	s.notify()
}

func (s *Session) RemoveMessage(id string) {
	s.mu.Lock()
	n := len(s.messages)
	s.messages = slices.DeleteFunc(s.messages, func(m model.Message) bool { return m.ID == id })
	changed := len(s.messages) != n
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) NextMessageID() string { return model.NewID() }

func (s *Session) FetchedData(id string) (datastore.Record, bool) { return s.store.Get(id) }

func (s *Session) SetFetchedData(rec datastore.Record) datastore.Record {
	return s.store.Upsert(rec)
}

func (s *Session) FetchedDataList() []datastore.Record { return s.store.List() }

func (s *Session) FetchedDataListPreview(maxRows int) []datastore.Preview {
	return s.store.ListPreview(maxRows)
}

func (s *Session) CurrentDataset() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) SetCurrentDataset(id string) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}
