package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ankitui/pkg/models"
)

// fakeEngine is a scriptable in-memory engine. Every blocking behavior is
// opt-in so most tests stay synchronous.
type fakeEngine struct {
	mu    sync.Mutex
	order []int64
	cards map[int64]models.Card
	due   map[int64]bool

	findErr   error
	answerErr error
	infoErr   error

	answered  []int64
	eases     []int
	suspended []int64
	buried    []int64
	flags     map[int64]int
	infoCalls int

	block chan struct{} // when non-nil, AnswerCard waits on it
}

func newFakeEngine(ids ...int64) *fakeEngine {
	e := &fakeEngine{
		cards: make(map[int64]models.Card),
		due:   make(map[int64]bool),
		flags: make(map[int64]int),
	}
	for _, id := range ids {
		e.order = append(e.order, id)
		e.cards[id] = models.Card{
			CardID:   id,
			Question: fmt.Sprintf("q%d", id),
			Answer:   fmt.Sprintf("a%d", id),
			Fields: map[string]models.NoteField{
				"Front": {Value: fmt.Sprintf("front %d", id), Order: 0},
			},
		}
		e.due[id] = true
	}
	return e
}

func (e *fakeEngine) FindCards(ctx context.Context, query string) ([]int64, error) {
	if e.findErr != nil {
		return nil, e.findErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.order...), nil
}

func (e *fakeEngine) AreDue(ctx context.Context, ids []int64) ([]bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bool, len(ids))
	for i, id := range ids {
		out[i] = e.due[id]
	}
	return out, nil
}

func (e *fakeEngine) CardsInfo(ctx context.Context, ids []int64) ([]models.Card, error) {
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Card, 0, len(ids))
	for _, id := range ids {
		if card, ok := e.cards[id]; ok {
			out = append(out, card)
		}
	}
	return out, nil
}

func (e *fakeEngine) CardInfo(ctx context.Context, id int64) (*models.Card, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.infoCalls++
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	card, ok := e.cards[id]
	if !ok {
		return nil, fmt.Errorf("card %d not found", id)
	}
	return &card, nil
}

func (e *fakeEngine) AnswerCard(ctx context.Context, cardID int64, ease int) error {
	if e.block != nil {
		<-e.block
	}
	if e.answerErr != nil {
		return e.answerErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.answered = append(e.answered, cardID)
	e.eases = append(e.eases, ease)
	return nil
}

func (e *fakeEngine) SetFlag(ctx context.Context, cardID int64, flag int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flags[cardID] = flag
	card := e.cards[cardID]
	card.Flags = flag
	e.cards[cardID] = card
	return nil
}

func (e *fakeEngine) Suspend(ctx context.Context, ids []int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suspended = append(e.suspended, ids...)
	return nil
}

func (e *fakeEngine) Bury(ctx context.Context, ids []int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buried = append(e.buried, ids...)
	return nil
}

func TestStartSessionInitialState(t *testing.T) {
	engine := newFakeEngine(1, 2, 3)
	m := NewMachine(engine, nil)

	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	s := m.Session()
	require.NotNil(t, s)
	assert.Equal(t, []int64{1, 2, 3}, s.Queue)
	assert.Equal(t, 0, s.Index)
	require.NotNil(t, s.Current)
	assert.Equal(t, int64(1), s.Current.CardID)
	assert.False(t, s.ShowAnswer)
	assert.Equal(t, 3, s.Stats.Total)
	require.Len(t, s.CardList, 3)
	assert.Equal(t, "front 2", s.CardList[1].Preview)
}

func TestStartSessionNoResults(t *testing.T) {
	engine := newFakeEngine()
	m := NewMachine(engine, nil)

	err := m.StartSession(context.Background(), "deck:Empty")
	require.ErrorIs(t, err, ErrNoResults)
	assert.False(t, m.Active())
}

func TestStartSessionNoDueCards(t *testing.T) {
	engine := newFakeEngine(1, 2)
	engine.due[1] = false
	engine.due[2] = false
	m := NewMachine(engine, nil)

	err := m.StartSession(context.Background(), "deck:Done")
	require.ErrorIs(t, err, ErrNoDueCards)
	assert.False(t, m.Active())
}

func TestStartSessionFiltersNotDue(t *testing.T) {
	engine := newFakeEngine(1, 2, 3)
	engine.due[2] = false
	m := NewMachine(engine, nil)

	require.NoError(t, m.StartSession(context.Background(), "is:due"))
	assert.Equal(t, []int64{1, 3}, m.Session().Queue)
}

func TestRevealAnswer(t *testing.T) {
	engine := newFakeEngine(1)
	m := NewMachine(engine, nil)

	// Reveal with no session must not panic.
	m.RevealAnswer()

	require.NoError(t, m.StartSession(context.Background(), "is:due"))
	m.RevealAnswer()
	assert.True(t, m.Session().ShowAnswer)
}

func TestAnswerCardAdvances(t *testing.T) {
	engine := newFakeEngine(1, 2)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))
	m.RevealAnswer()

	require.NoError(t, m.AnswerCard(context.Background(), 3))

	s := m.Session()
	assert.Equal(t, []int64{1}, engine.answered)
	assert.Equal(t, []int{3}, engine.eases)
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, int64(2), s.Current.CardID)
	assert.False(t, s.ShowAnswer)
	assert.Equal(t, 1, s.Stats.Studied)
	assert.Equal(t, 1, s.Stats.Good)
	_, answered := s.Answered[1]
	assert.True(t, answered)
}

func TestAnswerLastCardCompletes(t *testing.T) {
	engine := newFakeEngine(1)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	require.NoError(t, m.AnswerCard(context.Background(), 1))

	s := m.Session()
	assert.True(t, s.Completed())
	assert.Nil(t, s.Current)
	assert.Equal(t, 1, s.Stats.Again)
}

func TestAnswerCardEngineFailureLeavesStateUntouched(t *testing.T) {
	engine := newFakeEngine(1, 2)
	engine.answerErr = errors.New("engine down")
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	err := m.AnswerCard(context.Background(), 3)
	require.Error(t, err)

	s := m.Session()
	assert.Equal(t, 0, s.Index)
	assert.Equal(t, int64(1), s.Current.CardID)
	assert.Equal(t, 0, s.Stats.Studied)
	assert.Empty(t, s.Answered)
}

func TestAnswerCardNextFetchFailureKeepsPosition(t *testing.T) {
	engine := newFakeEngine(1, 2)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	engine.infoErr = errors.New("timeout")
	err := m.AnswerCard(context.Background(), 3)
	require.Error(t, err)

	// The grade went through, so it is recorded; only the advance is held.
	s := m.Session()
	assert.Equal(t, []int64{1}, engine.answered)
	assert.Equal(t, 1, s.Stats.Studied)
	assert.Equal(t, 0, s.Index)
	assert.Equal(t, int64(1), s.Current.CardID)
}

func TestAnswerCardValidatesEase(t *testing.T) {
	engine := newFakeEngine(1)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	assert.Error(t, m.AnswerCard(context.Background(), 0))
	assert.Error(t, m.AnswerCard(context.Background(), 5))
	assert.Empty(t, engine.answered)
}

func TestAnswerCardBusy(t *testing.T) {
	engine := newFakeEngine(1, 2)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	engine.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.AnswerCard(context.Background(), 3)
	}()

	// Wait until the first answer is holding the guard.
	require.Eventually(t, m.Busy, time.Second, time.Millisecond)

	err := m.AnswerCard(context.Background(), 3)
	require.ErrorIs(t, err, ErrBusy)

	close(engine.block)
	require.NoError(t, <-done)
	assert.Equal(t, []int64{1}, engine.answered)
}

func TestJumpToCard(t *testing.T) {
	engine := newFakeEngine(1, 2, 3)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))
	m.RevealAnswer()

	require.NoError(t, m.JumpToCard(context.Background(), 2))

	s := m.Session()
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, int64(3), s.Current.CardID)
	assert.False(t, s.ShowAnswer)
}

func TestJumpToCurrentIndexIsNoOp(t *testing.T) {
	engine := newFakeEngine(1, 2)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	before := engine.infoCalls
	require.NoError(t, m.JumpToCard(context.Background(), 0))
	assert.Equal(t, before, engine.infoCalls)
}

func TestJumpToCardOutOfRange(t *testing.T) {
	engine := newFakeEngine(1, 2)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	assert.Error(t, m.JumpToCard(context.Background(), 5))
	assert.Error(t, m.JumpToCard(context.Background(), -1))
	assert.Equal(t, 0, m.Session().Index)
}

func TestToggleFlag(t *testing.T) {
	engine := newFakeEngine(1)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	require.NoError(t, m.ToggleFlag(context.Background(), 2))

	assert.Equal(t, 2, engine.flags[1])
	assert.Equal(t, 2, m.Session().Current.Flags)
}

func TestSuspendAdvancesWithoutStats(t *testing.T) {
	engine := newFakeEngine(1, 2)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	require.NoError(t, m.SuspendCard(context.Background()))

	s := m.Session()
	assert.Equal(t, []int64{1}, engine.suspended)
	assert.Equal(t, int64(2), s.Current.CardID)
	assert.Equal(t, 0, s.Stats.Studied)
	assert.Empty(t, s.Answered)
}

func TestBuryLastCardCompletes(t *testing.T) {
	engine := newFakeEngine(1)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	require.NoError(t, m.BuryCard(context.Background()))

	assert.Equal(t, []int64{1}, engine.buried)
	assert.True(t, m.Session().Completed())
}

func TestEndSession(t *testing.T) {
	engine := newFakeEngine(1)
	m := NewMachine(engine, nil)
	require.NoError(t, m.StartSession(context.Background(), "is:due"))

	m.EndSession()
	assert.False(t, m.Active())
	assert.Nil(t, m.Session())
}

func TestOperationsWithoutSession(t *testing.T) {
	engine := newFakeEngine(1)
	m := NewMachine(engine, nil)

	require.ErrorIs(t, m.AnswerCard(context.Background(), 3), ErrNoSession)
	require.ErrorIs(t, m.ToggleFlag(context.Background(), 1), ErrNoSession)
	require.ErrorIs(t, m.SuspendCard(context.Background()), ErrNoSession)
	require.NoError(t, m.JumpToCard(context.Background(), 1))
}
