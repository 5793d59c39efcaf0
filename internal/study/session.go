// Package study owns the lifecycle of a review session: the due-card queue,
// the current position, per-card answer state and aggregate statistics.
package study

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ankitui/pkg/models"
)

var (
	// ErrNoResults means the session query matched no cards at all.
	ErrNoResults = errors.New("no cards match the query")
	// ErrNoDueCards means the query matched cards but none are due.
	ErrNoDueCards = errors.New("no cards are due for review")
	// ErrBusy means another mutating operation is still in flight. The state
	// machine enforces mutual exclusion itself rather than trusting callers
	// to serialize.
	ErrBusy = errors.New("another operation is in progress")
	// ErrNoSession means the operation needs an active session.
	ErrNoSession = errors.New("no active session")
)

// Engine is the subset of the bridge client the state machine depends on.
type Engine interface {
	FindCards(ctx context.Context, query string) ([]int64, error)
	AreDue(ctx context.Context, ids []int64) ([]bool, error)
	CardsInfo(ctx context.Context, ids []int64) ([]models.Card, error)
	CardInfo(ctx context.Context, id int64) (*models.Card, error)
	AnswerCard(ctx context.Context, cardID int64, ease int) error
	SetFlag(ctx context.Context, cardID int64, flag int) error
	Suspend(ctx context.Context, ids []int64) error
	Bury(ctx context.Context, ids []int64) error
}

// Session holds the mutable state of one review session. It lives only in
// memory for the lifetime of the view; nothing here is persisted.
type Session struct {
	Query      string
	Queue      []int64
	CardList   []models.CardListEntry
	Index      int
	Current    *models.Card
	ShowAnswer bool
	Answered   map[int64]struct{}
	Stats      models.SessionStats
}

// Completed reports whether the queue is exhausted.
func (s *Session) Completed() bool { return s.Current == nil }

// Machine drives session state transitions. All mutating operations are
// mutually exclusive: a second call while one is outstanding fails fast with
// ErrBusy.
type Machine struct {
	mu      sync.Mutex
	busy    bool
	session *Session
	engine  Engine
	log     *zap.Logger
}

// NewMachine creates an idle state machine backed by engine.
func NewMachine(engine Engine, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{engine: engine, log: log}
}

// Active reports whether a session exists.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Busy reports whether a mutating operation is in flight.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Session returns the current session, or nil when idle.
func (m *Machine) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// begin acquires the busy guard.
func (m *Machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	m.busy = true
	return nil
}

// end releases the busy guard.
func (m *Machine) end() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// StartSession looks up all cards matching query, filters to due cards,
// fetches their snapshots and initializes a fresh session positioned at the
// first card with the question face showing.
func (m *Machine) StartSession(ctx context.Context, query string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	ids, err := m.engine.FindCards(ctx, query)
	if err != nil {
		return fmt.Errorf("find cards: %w", err)
	}
	if len(ids) == 0 {
		return ErrNoResults
	}

	due, err := m.engine.AreDue(ctx, ids)
	if err != nil {
		return fmt.Errorf("check due status: %w", err)
	}
	queue := make([]int64, 0, len(ids))
	for i, id := range ids {
		if i < len(due) && due[i] {
			queue = append(queue, id)
		}
	}
	if len(queue) == 0 {
		return ErrNoDueCards
	}

	cards, err := m.engine.CardsInfo(ctx, queue)
	if err != nil {
		return fmt.Errorf("fetch card snapshots: %w", err)
	}
	if len(cards) != len(queue) {
		return fmt.Errorf("engine returned %d snapshots for %d cards", len(cards), len(queue))
	}

	list := make([]models.CardListEntry, len(cards))
	for i, card := range cards {
		list[i] = models.CardListEntry{
			CardID:  card.CardID,
			Preview: SortFieldPreview(&card),
		}
	}

	first := cards[0]
	m.mu.Lock()
	m.session = &Session{
		Query:    query,
		Queue:    queue,
		CardList: list,
		Index:    0,
		Current:  &first,
		Answered: make(map[int64]struct{}),
		Stats:    models.SessionStats{Total: len(queue)},
	}
	m.mu.Unlock()

	m.log.Info("session started",
		zap.String("query", query),
		zap.Int("due", len(queue)),
		zap.Int("matched", len(ids)))
	return nil
}

// RevealAnswer shows the answer face of the current card. No-op when idle or
// when the queue is exhausted.
func (m *Machine) RevealAnswer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.Current == nil {
		return
	}
	m.session.ShowAnswer = true
}

// AnswerCard submits a grade (1-4) for the current card, updates the session
// statistics and advances to the next card or completes the session. Any
// engine failure leaves the session untouched; the grade is not assumed to
// have been applied.
func (m *Machine) AnswerCard(ctx context.Context, ease int) error {
	if ease < 1 || ease > 4 {
		return fmt.Errorf("ease %d out of range 1-4", ease)
	}
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session == nil || m.session.Current == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	current := m.session.Current.CardID
	nextIndex := m.session.Index + 1
	hasNext := nextIndex < len(m.session.Queue)
	var nextID int64
	if hasNext {
		nextID = m.session.Queue[nextIndex]
	}
	m.mu.Unlock()

	if err := m.engine.AnswerCard(ctx, current, ease); err != nil {
		return fmt.Errorf("submit grade: %w", err)
	}

	var next *models.Card
	var fetchErr error
	if hasNext {
		next, fetchErr = m.engine.CardInfo(ctx, nextID)
		if fetchErr != nil {
			m.log.Warn("next card fetch failed", zap.Int64("card", nextID), zap.Error(fetchErr))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	// The grade is applied at this point, so the stats record it even when
	// the follow-up snapshot fetch fails; only the advancement is held back.
	m.session.Stats.Studied++
	switch ease {
	case 1:
		m.session.Stats.Again++
	case 2:
		m.session.Stats.Hard++
	case 3:
		m.session.Stats.Good++
	case 4:
		m.session.Stats.Easy++
	}
	m.session.Answered[current] = struct{}{}
	if fetchErr != nil {
		return fmt.Errorf("fetch next card: %w", fetchErr)
	}
	if hasNext {
		m.session.Index = nextIndex
		m.session.Current = next
	} else {
		m.session.Current = nil
	}
	m.session.ShowAnswer = false
	return nil
}

// JumpToCard repositions the session at index without grading. Jumping to the
// current position is a no-op and performs no engine call.
func (m *Machine) JumpToCard(ctx context.Context, index int) error {
	m.mu.Lock()
	if m.session == nil || index == m.session.Index {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session == nil || index == m.session.Index {
		m.mu.Unlock()
		return nil
	}
	if index < 0 || index >= len(m.session.Queue) {
		m.mu.Unlock()
		return fmt.Errorf("index %d out of range 0-%d", index, len(m.session.Queue)-1)
	}
	target := m.session.Queue[index]
	m.mu.Unlock()

	card, err := m.engine.CardInfo(ctx, target)
	if err != nil {
		return fmt.Errorf("fetch card: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	m.session.Index = index
	m.session.Current = card
	m.session.ShowAnswer = false
	return nil
}

// ToggleFlag applies a color flag (0 clears, 1-4 are color codes) to the
// current card and refetches its snapshot. Failure does not alter the session
// position.
func (m *Machine) ToggleFlag(ctx context.Context, flag int) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session == nil || m.session.Current == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	current := m.session.Current.CardID
	m.mu.Unlock()

	if err := m.engine.SetFlag(ctx, current, flag); err != nil {
		return fmt.Errorf("set flag: %w", err)
	}
	card, err := m.engine.CardInfo(ctx, current)
	if err != nil {
		return fmt.Errorf("refetch card: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.Current == nil || m.session.Current.CardID != current {
		return nil
	}
	m.session.Current = card
	return nil
}

// SuspendCard suspends the current card, then advances to the next card or
// completes the session. Grading statistics are untouched.
func (m *Machine) SuspendCard(ctx context.Context) error {
	return m.skipCurrent(ctx, "suspend", func(ctx context.Context, id int64) error {
		return m.engine.Suspend(ctx, []int64{id})
	})
}

// BuryCard buries the current card, then advances to the next card or
// completes the session. Grading statistics are untouched.
func (m *Machine) BuryCard(ctx context.Context) error {
	return m.skipCurrent(ctx, "bury", func(ctx context.Context, id int64) error {
		return m.engine.Bury(ctx, []int64{id})
	})
}

// skipCurrent applies action to the current card and then advances exactly
// like AnswerCard, without touching stats or the answered set.
func (m *Machine) skipCurrent(ctx context.Context, name string, action func(context.Context, int64) error) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session == nil || m.session.Current == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	current := m.session.Current.CardID
	nextIndex := m.session.Index + 1
	hasNext := nextIndex < len(m.session.Queue)
	var nextID int64
	if hasNext {
		nextID = m.session.Queue[nextIndex]
	}
	m.mu.Unlock()

	if err := action(ctx, current); err != nil {
		return fmt.Errorf("%s card: %w", name, err)
	}

	var next *models.Card
	if hasNext {
		card, err := m.engine.CardInfo(ctx, nextID)
		if err != nil {
			return fmt.Errorf("fetch next card: %w", err)
		}
		next = card
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	if hasNext {
		m.session.Index = nextIndex
		m.session.Current = next
	} else {
		m.session.Current = nil
	}
	m.session.ShowAnswer = false
	return nil
}

// EndSession discards the session unconditionally.
func (m *Machine) EndSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}
