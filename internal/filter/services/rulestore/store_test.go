package rulestore

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/keyword-filter/internal/filter/common/log"
	"github.com/haukened/keyword-filter/internal/filter/domain"
)

// MockBackend records Save calls and returns scripted results.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Load() (domain.RuleSet, error) {
	args := m.Called()
	return args.Get(0).(domain.RuleSet), args.Error(1)
}

func (m *MockBackend) Save(rs domain.RuleSet) error {
	args := m.Called(rs)
	return args.Error(0)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// diskBackend keeps the last saved rule set so a second Store can reload it.
type diskBackend struct {
	mu    sync.Mutex
	saved domain.RuleSet
	saves int
	err   error
}

func (d *diskBackend) Load() (domain.RuleSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saved.Clone(), nil
}

func (d *diskBackend) Save(rs domain.RuleSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.saved = rs.Clone()
	d.saves++
	return nil
}

func (d *diskBackend) Close() error { return nil }

// recordingLogger captures messages for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, level+":"+msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Info(_ map[string]any, msg string)  { l.add("INFO", msg) }
func (l *recordingLogger) Error(_ map[string]any, msg string) { l.add("ERROR", msg) }
func (l *recordingLogger) Debug(_ map[string]any, msg string) { l.add("DEBUG", msg) }
func (l *recordingLogger) Warn(_ map[string]any, msg string)  { l.add("WARN", msg) }
func (l *recordingLogger) Panic(_ map[string]any, msg string) { l.add("PANIC", msg) }
func (l *recordingLogger) Fatal(_ map[string]any, msg string) { l.add("FATAL", msg) }

// setFilter is an exact BloomFilter used to observe index behavior.
type setFilter struct{ keys map[string]struct{} }

func (f *setFilter) Add(key []byte) { f.keys[string(key)] = struct{}{} }
func (f *setFilter) MightContain(key []byte) bool {
	_, ok := f.keys[string(key)]
	return ok
}

type setFactory struct{ built int }

func (f *setFactory) New(uint64, float64) BloomFilter {
	f.built++
	return &setFilter{keys: map[string]struct{}{}}
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s, err := New(Options{Backend: backend, Logger: log.NewNoopLogger()})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_LoadError(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.RuleSet{}, errors.New("disk gone"))

	_, err := New(Options{Backend: b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestNew_MissingCategoriesDefaultEmpty(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.RuleSet{Keywords: []string{"测试"}}, nil)

	s := newTestStore(t, b)
	rs := s.List()
	assert.NotNil(t, rs.Prefixes)
	assert.Empty(t, rs.Prefixes)
	assert.Equal(t, []string{"测试"}, rs.Keywords)
	assert.NotNil(t, rs.Suffixes)
	assert.Equal(t, uint64(0), s.Version())
}

func TestNew_DropsDuplicatesAndWarnsOnEmptyRules(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.RuleSet{Prefixes: []string{"a", "a", ""}}, nil)
	logger := &recordingLogger{}

	s, err := New(Options{Backend: b, Logger: logger})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", ""}, s.List().Prefixes)
	assert.Contains(t, logger.msgs, "WARN:Dropped duplicate rules from persisted rule set")
	assert.Contains(t, logger.msgs, "WARN:Empty rule present; it matches every message")
	assert.Contains(t, logger.msgs, "INFO:Keyword filter rules loaded")
}

func TestAdd_AddedThenAlreadyExists(t *testing.T) {
	b := &diskBackend{}
	s := newTestStore(t, b)

	out, err := s.Add(domain.CategoryKeyword, "广告")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAdded, out)

	out, err = s.Add(domain.CategoryKeyword, "广告")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyExists, out)

	assert.Equal(t, []string{"广告"}, s.List().Keywords)
	assert.Equal(t, 1, b.saves, "duplicate add must not write")
	assert.Equal(t, uint64(1), s.Version())
}

func TestAdd_AppendsInInsertionOrder(t *testing.T) {
	s := newTestStore(t, &diskBackend{})
	for _, v := range []string{"c", "a", "b"} {
		_, err := s.Add(domain.CategorySuffix, v)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"c", "a", "b"}, s.List().Suffixes)
}

func TestAdd_CaseSensitiveDuplicates(t *testing.T) {
	s := newTestStore(t, &diskBackend{})
	_, err := s.Add(domain.CategoryPrefix, "Spam")
	require.NoError(t, err)
	out, err := s.Add(domain.CategoryPrefix, "spam")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAdded, out)
}

func TestAdd_SameValueDifferentCategories(t *testing.T) {
	s := newTestStore(t, &diskBackend{})
	for _, c := range domain.RuleCategories {
		out, err := s.Add(c, "x")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAdded, out)
	}
	assert.Equal(t, 3, s.List().Len())
}

func TestAdd_InvalidCategory(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.EmptyRuleSet(), nil)
	s := newTestStore(t, b)

	for _, c := range []domain.RuleCategory{domain.CategoryNone, domain.RuleCategory(9)} {
		_, err := s.Add(c, "x")
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
		_, err = s.Remove(c, "x")
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	}
	assert.Equal(t, 0, s.List().Len())
	b.AssertNotCalled(t, "Save", mock.Anything)
}

func TestAdd_RejectsEmptyValue(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.EmptyRuleSet(), nil)
	s := newTestStore(t, b)

	for _, v := range []string{"", "   ", "\t\n"} {
		_, err := s.Add(domain.CategoryKeyword, v)
		assert.ErrorIs(t, err, domain.ErrEmptyRule)
		_, err = s.Remove(domain.CategoryKeyword, v)
		assert.ErrorIs(t, err, domain.ErrEmptyRule)
	}
	b.AssertNotCalled(t, "Save", mock.Anything)
}

func TestAdd_PersistsFullRuleSet(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.RuleSet{Prefixes: []string{"p"}, Suffixes: []string{"s"}}, nil)
	want := domain.RuleSet{Prefixes: []string{"p"}, Keywords: []string{"k"}, Suffixes: []string{"s"}}
	b.On("Save", want).Return(nil).Once()
	s := newTestStore(t, b)

	out, err := s.Add(domain.CategoryKeyword, "k")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAdded, out)
	b.AssertExpectations(t)
}

func TestAdd_PersistenceFailureLeavesStateUnchanged(t *testing.T) {
	b := &diskBackend{}
	s := newTestStore(t, b)
	_, err := s.Add(domain.CategoryKeyword, "kept")
	require.NoError(t, err)

	b.err = errors.New("write failed")
	_, err = s.Add(domain.CategoryKeyword, "lost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Contains(t, err.Error(), "write failed")

	assert.Equal(t, []string{"kept"}, s.List().Keywords)
	assert.Equal(t, uint64(1), s.Version())

	// the failed value is still addable once storage recovers
	b.err = nil
	out, err := s.Add(domain.CategoryKeyword, "lost")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAdded, out)
}

func TestRemove_RemovedThenNotFound(t *testing.T) {
	b := &diskBackend{saved: domain.RuleSet{Keywords: []string{"a", "x", "b"}}}
	s := newTestStore(t, b)

	out, err := s.Remove(domain.CategoryKeyword, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRemoved, out)
	assert.Equal(t, []string{"a", "b"}, s.List().Keywords)

	out, err = s.Remove(domain.CategoryKeyword, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotFound, out)
	assert.Equal(t, []string{"a", "b"}, s.List().Keywords)
	assert.Equal(t, 1, b.saves)
}

func TestRemove_NotFoundOnEmptyDoesNotWrite(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.EmptyRuleSet(), nil)
	s := newTestStore(t, b)

	out, err := s.Remove(domain.CategoryKeyword, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotFound, out)
	assert.Empty(t, s.List().Keywords)
	b.AssertNotCalled(t, "Save", mock.Anything)
}

func TestRemove_PersistenceFailureLeavesStateUnchanged(t *testing.T) {
	b := &diskBackend{saved: domain.RuleSet{Prefixes: []string{"p"}}}
	s := newTestStore(t, b)
	b.err = errors.New("read-only filesystem")

	_, err := s.Remove(domain.CategoryPrefix, "p")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, []string{"p"}, s.List().Prefixes)
	assert.Equal(t, uint64(0), s.Version())
}

func TestRoundTrip_ReloadReproducesRuleSet(t *testing.T) {
	b := &diskBackend{}
	s := newTestStore(t, b)
	adds := []struct {
		c domain.RuleCategory
		v string
	}{
		{domain.CategoryPrefix, "广告"},
		{domain.CategoryKeyword, "测试"},
		{domain.CategoryPrefix, "ad"},
		{domain.CategorySuffix, "结束"},
		{domain.CategoryKeyword, "spam offer"},
	}
	for _, a := range adds {
		_, err := s.Add(a.c, a.v)
		require.NoError(t, err)
	}

	reloaded := newTestStore(t, b)
	assert.Equal(t, s.List(), reloaded.List())
}

func TestSnapshot_IsNotAffectedByLaterMutations(t *testing.T) {
	s := newTestStore(t, &diskBackend{saved: domain.RuleSet{Keywords: []string{"a"}}})
	snap := s.Snapshot()

	_, err := s.Add(domain.CategoryKeyword, "b")
	require.NoError(t, err)
	_, err = s.Remove(domain.CategoryKeyword, "a")
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, snap.Rules.Keywords)
	assert.Equal(t, uint64(0), snap.Version)
	assert.Equal(t, []string{"b"}, s.Snapshot().Rules.Keywords)
	assert.Equal(t, uint64(2), s.Snapshot().Version)
}

func TestIndex_RebuiltOnCommit(t *testing.T) {
	factory := &setFactory{}
	s, err := New(Options{
		Backend:      &diskBackend{saved: domain.RuleSet{Prefixes: []string{"a"}}},
		BloomFactory: factory,
		BloomFPRate:  5, // out of range, falls back to default
	})
	require.NoError(t, err)
	assert.Equal(t, len(domain.RuleCategories), factory.built)
	assert.Equal(t, DefaultBloomFPRate, s.fpRate)

	out, err := s.Add(domain.CategoryPrefix, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyExists, out)

	out, err = s.Add(domain.CategoryPrefix, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAdded, out)
	assert.Equal(t, 2*len(domain.RuleCategories), factory.built)

	out, err = s.Remove(domain.CategoryPrefix, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRemoved, out)

	out, err = s.Remove(domain.CategoryPrefix, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotFound, out)
}

func TestIndex_NilAnswersMaybe(t *testing.T) {
	var idx *index
	assert.True(t, idx.mightContain(domain.CategoryPrefix, "x"))
	assert.Equal(t, 1, idx.position(domain.CategoryPrefix, []string{"a", "x"}, "x"))
	assert.Nil(t, buildIndex(nil, 0.01, domain.EmptyRuleSet()))
}

func TestClose_ClosesBackend(t *testing.T) {
	b := new(MockBackend)
	b.On("Load").Return(domain.EmptyRuleSet(), nil)
	b.On("Close").Return(nil).Once()
	s := newTestStore(t, b)
	require.NoError(t, s.Close())
	b.AssertExpectations(t)
}

func TestConcurrentAddsAndSnapshots(t *testing.T) {
	s := newTestStore(t, &diskBackend{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Add(domain.CategoryKeyword, string(rune('a'+i)))
		}(i)
		go func() {
			defer wg.Done()
			snap := s.Snapshot()
			seen := map[string]bool{}
			for _, k := range snap.Rules.Keywords {
				assert.False(t, seen[k], "duplicate in snapshot")
				seen[k] = true
			}
		}()
	}
	wg.Wait()
	assert.Len(t, s.List().Keywords, 20)
	assert.Equal(t, uint64(20), s.Version())
}
