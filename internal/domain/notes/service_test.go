package notes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitmgr/visitmgr/internal/domain/scheduling"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

// -- Mocks --

type mockRepo struct {
	mu     sync.Mutex
	visits map[int]scheduling.Status
	rules  map[int]bool
	items  map[int]*VisitNote
	nextID int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		visits: map[int]scheduling.Status{
			1: scheduling.StatusScheduled,
			2: scheduling.StatusPending,
			3: scheduling.StatusScheduled,
		},
		rules:  map[int]bool{3: true, 4: true},
		items:  make(map[int]*VisitNote),
		nextID: 1,
	}
}

func (m *mockRepo) LockVisitStatus(_ context.Context, visitID int) (scheduling.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.visits[visitID]
	if !ok {
		return "", apperrors.NewNotFoundError(msgVisitNotFound)
	}
	return st, nil
}

func (m *mockRepo) RuleExists(_ context.Context, ruleID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[ruleID], nil
}

func (m *mockRepo) Create(_ context.Context, n *VisitNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.VisitID == n.VisitID {
			return apperrors.NewConflictError(msgNoteExists)
		}
	}
	n.NotesID = m.nextID
	m.nextID++
	cp := *n
	m.items[n.NotesID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int) (*VisitNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(msgNoteNotFound)
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepo) GetByVisit(_ context.Context, visitID int) (*VisitNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.VisitID == visitID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError(msgNoteNotFound)
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*VisitNote, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*VisitNote
	for _, n := range m.items {
		if f.Finalized != nil && n.Finalized != *f.Finalized {
			continue
		}
		if f.VisitID > 0 && n.VisitID != f.VisitID {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotesID > out[j].NotesID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) UpdateDraft(_ context.Context, n *VisitNote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[n.NotesID]
	if !ok || cur.Finalized {
		return false, nil
	}
	cur.VisitNotes = n.VisitNotes
	cur.RuleID = n.RuleID
	return true, nil
}

func (m *mockRepo) DeleteDraft(_ context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[id]
	if !ok || cur.Finalized {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

// serialTx runs units of work one at a time, like row locks would.
type serialTx struct {
	mu    sync.Mutex
	calls int
}

func (t *serialTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return fn(ctx)
}

type recordedActivity struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordedActivity) Record(_ context.Context, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func newTestService() (*Service, *mockRepo, *serialTx, *recordedActivity) {
	repo := newMockRepo()
	tx := &serialTx{}
	rec := &recordedActivity{}
	return NewService(repo, tx, rec, zerolog.Nop()), repo, tx, rec
}

func finalize(repo *mockRepo, id int) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.items[id].Finalized = true
}

// -- Create --

func TestService_CreateNote_ScheduledVisit(t *testing.T) {
	svc, repo, tx, rec := newTestService()
	n := &VisitNote{VisitID: 1, VisitNotes: "  follow up in two weeks ", RuleID: 3}

	require.NoError(t, svc.CreateNote(context.Background(), n))

	assert.Equal(t, 1, n.NotesID)
	stored := repo.items[1]
	require.NotNil(t, stored)
	assert.Equal(t, "follow up in two weeks", stored.VisitNotes)
	assert.False(t, stored.Finalized)
	assert.Equal(t, 1, tx.calls)
	assert.Equal(t, []string{"created visit note 1 for visit 1"}, rec.lines)
}

func TestService_CreateNote_PendingVisitIsInvalidState(t *testing.T) {
	svc, repo, _, _ := newTestService()

	err := svc.CreateNote(context.Background(), &VisitNote{VisitID: 2, RuleID: 3})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
	assert.Equal(t, msgNotScheduled, apperrors.PublicMessage(err))
	assert.Empty(t, repo.items)
}

func TestService_CreateNote_UnknownVisit(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.CreateNote(context.Background(), &VisitNote{VisitID: 99, RuleID: 3})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_CreateNote_InvalidRule(t *testing.T) {
	svc, _, tx, _ := newTestService()

	err := svc.CreateNote(context.Background(), &VisitNote{VisitID: 1, RuleID: 42})
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Equal(t, msgInvalidRule, apperrors.PublicMessage(err))
	assert.Zero(t, tx.calls, "rule is checked before the transaction")

	err = svc.CreateNote(context.Background(), &VisitNote{VisitID: 1})
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestService_CreateNote_IDsAboveIntegerRange(t *testing.T) {
	svc, repo, tx, _ := newTestService()

	err := svc.CreateNote(context.Background(), &VisitNote{VisitID: 3000000000, RuleID: 3})
	require.True(t, apperrors.IsInvalidInput(err), "got %v", err)
	assert.Equal(t, "visitID must be at most 2147483647", apperrors.PublicMessage(err))

	err = svc.CreateNote(context.Background(), &VisitNote{VisitID: 1, RuleID: 3000000000})
	require.True(t, apperrors.IsInvalidInput(err), "got %v", err)
	assert.Equal(t, msgInvalidRule, apperrors.PublicMessage(err))

	assert.Zero(t, tx.calls)
	assert.Empty(t, repo.items)
}

func TestService_CreateNote_SecondNoteForVisitConflicts(t *testing.T) {
	svc, repo, _, _ := newTestService()
	require.NoError(t, svc.CreateNote(context.Background(), &VisitNote{VisitID: 1, RuleID: 3}))

	err := svc.CreateNote(context.Background(), &VisitNote{VisitID: 1, RuleID: 4})
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, msgNoteExists, apperrors.PublicMessage(err))
	assert.Len(t, repo.items, 1)
}

func TestService_CreateNote_ConcurrentOneWins(t *testing.T) {
	svc, repo, _, _ := newTestService()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, confl int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.CreateNote(context.Background(), &VisitNote{VisitID: 3, RuleID: 3})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperrors.IsConflict(err):
				confl++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, confl)
	assert.Len(t, repo.items, 1)
}

// -- Update / Delete --

func TestService_UpdateNote_Draft(t *testing.T) {
	svc, repo, _, rec := newTestService()
	n := &VisitNote{VisitID: 1, VisitNotes: "draft", RuleID: 3}
	require.NoError(t, svc.CreateNote(context.Background(), n))

	upd := &VisitNote{NotesID: n.NotesID, VisitNotes: "revised", RuleID: 4}
	require.NoError(t, svc.UpdateNote(context.Background(), n.NotesID, upd))

	stored := repo.items[n.NotesID]
	assert.Equal(t, "revised", stored.VisitNotes)
	assert.Equal(t, 4, stored.RuleID)
	assert.Equal(t, 1, stored.VisitID, "visit is not reassigned")
	assert.Contains(t, rec.lines, fmt.Sprintf("updated visit note %d", n.NotesID))
}

func TestService_UpdateNote_IDMismatch(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.UpdateNote(context.Background(), 1, &VisitNote{NotesID: 2, RuleID: 3})
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Equal(t, "ID mismatch", apperrors.PublicMessage(err))
}

func TestService_UpdateNote_InvalidRule(t *testing.T) {
	svc, _, _, _ := newTestService()
	n := &VisitNote{VisitID: 1, RuleID: 3}
	require.NoError(t, svc.CreateNote(context.Background(), n))

	err := svc.UpdateNote(context.Background(), n.NotesID, &VisitNote{NotesID: n.NotesID, RuleID: 77})
	assert.Equal(t, msgInvalidRule, apperrors.PublicMessage(err))
}

func TestService_FinalizedNoteIsImmutable(t *testing.T) {
	svc, repo, _, _ := newTestService()
	n := &VisitNote{VisitID: 1, VisitNotes: "billed", RuleID: 3}
	require.NoError(t, svc.CreateNote(context.Background(), n))
	finalize(repo, n.NotesID)

	err := svc.UpdateNote(context.Background(), n.NotesID, &VisitNote{NotesID: n.NotesID, VisitNotes: "changed", RuleID: 4})
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, msgFinalizedEdit, apperrors.PublicMessage(err))

	err = svc.DeleteNote(context.Background(), n.NotesID)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, msgFinalizedDel, apperrors.PublicMessage(err))

	stored := repo.items[n.NotesID]
	require.NotNil(t, stored)
	assert.Equal(t, "billed", stored.VisitNotes)
	assert.Equal(t, 3, stored.RuleID)
}

func TestService_UpdateDelete_Missing(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.UpdateNote(context.Background(), 9, &VisitNote{NotesID: 9, RuleID: 3})
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(svc.DeleteNote(context.Background(), 9)))
}

func TestService_DeleteNote_Draft(t *testing.T) {
	svc, repo, _, rec := newTestService()
	n := &VisitNote{VisitID: 1, RuleID: 3}
	require.NoError(t, svc.CreateNote(context.Background(), n))

	require.NoError(t, svc.DeleteNote(context.Background(), n.NotesID))
	assert.Empty(t, repo.items)
	assert.Contains(t, rec.lines, fmt.Sprintf("deleted visit note %d", n.NotesID))
}

func TestService_ListNotes_NewestFirst(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	require.NoError(t, svc.CreateNote(ctx, &VisitNote{VisitID: 1, RuleID: 3}))
	require.NoError(t, svc.CreateNote(ctx, &VisitNote{VisitID: 3, RuleID: 3}))
	finalize(repo, 1)

	items, total, err := svc.ListNotes(ctx, Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, items[0].NotesID)

	drafts := false
	items, total, err = svc.ListNotes(ctx, Filter{Finalized: &drafts}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 3, items[0].VisitID)
}
