package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/validate"
)

// -- Mock Repositories --

type mockVisitRepo struct {
	mu         sync.Mutex
	items      map[int]*Visit
	patients   map[int]bool
	doctors    map[int]bool
	referenced map[int]bool
}

func newMockVisitRepo() *mockVisitRepo {
	return &mockVisitRepo{
		items:      make(map[int]*Visit),
		patients:   map[int]bool{1: true, 2: true},
		doctors:    map[int]bool{10: true, 11: true},
		referenced: make(map[int]bool),
	}
}

func (m *mockVisitRepo) Create(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[v.VisitID]; ok {
		return apperrors.NewConflictError(msgVisitExists)
	}
	if !m.patients[v.PatientID] || !m.doctors[v.DoctorID] {
		return apperrors.NewConflictError(msgUnknownParty)
	}
	cp := *v
	m.items[v.VisitID] = &cp
	return nil
}

func (m *mockVisitRepo) GetByID(_ context.Context, id int) (*Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(msgVisitNotFound)
	}
	cp := *v
	return &cp, nil
}

func (m *mockVisitRepo) Update(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[v.VisitID]
	if !ok {
		return apperrors.NewNotFoundError(msgVisitNotFound)
	}
	if v.Status == "" {
		v.Status = cur.Status
	}
	cp := *v
	m.items[v.VisitID] = &cp
	return nil
}

func (m *mockVisitRepo) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.referenced[id] {
		return apperrors.NewConflictError(msgVisitReferenced)
	}
	if _, ok := m.items[id]; !ok {
		return apperrors.NewNotFoundError(msgVisitNotFound)
	}
	delete(m.items, id)
	return nil
}

func (m *mockVisitRepo) List(_ context.Context, f VisitFilter, limit, offset int) ([]*Visit, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Visit
	for _, v := range m.items {
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.PatientID > 0 && v.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID > 0 && v.DoctorID != f.DoctorID {
			continue
		}
		if f.From != nil && v.VisitDate.Before(*f.From) {
			continue
		}
		if f.To != nil && !v.VisitDate.Before(*f.To) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitID < out[j].VisitID })
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

type mockFeeRepo struct {
	items []*FeeSchedule
	err   error
}

func (m *mockFeeRepo) List(_ context.Context) ([]*FeeSchedule, error) { return m.items, m.err }

func (m *mockFeeRepo) FeePerMinute(_ context.Context, visitType string) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	for _, f := range m.items {
		if f.VisitType == visitType {
			return f.FeePerMinute, nil
		}
	}
	return decimal.Zero, nil
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

func newTestService() (*Service, *mockVisitRepo, *recordedActivity) {
	visits := newMockVisitRepo()
	fees := &mockFeeRepo{items: []*FeeSchedule{
		{FeeID: 1, VisitType: "Consultation", FeePerMinute: decimal.RequireFromString("2.50")},
		{FeeID: 2, VisitType: "Consultation", FeePerMinute: decimal.RequireFromString("9.99")},
		{FeeID: 3, VisitType: "Micro", FeePerMinute: decimal.RequireFromString("0.125")},
	}}
	rec := &recordedActivity{}
	return NewService(visits, fees, rec, zerolog.Nop()), visits, rec
}

func sampleVisit(id int) *Visit {
	return &Visit{
		VisitID:       id,
		VisitType:     "Consultation",
		VisitDuration: 45,
		VisitDate:     time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		PatientID:     1,
		DoctorID:      10,
	}
}

// -- Visit Tests --

func TestService_CreateVisit_PricesAndDefaultsPending(t *testing.T) {
	svc, repo, rec := newTestService()
	v := sampleVisit(100)

	require.NoError(t, svc.CreateVisit(context.Background(), v))

	stored := repo.items[100]
	require.NotNil(t, stored)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, "112.50", stored.VisitFee.StringFixed(2), "first matching fee row wins")
	assert.Equal(t, []string{"created visit 100"}, rec.lines)
}

func TestService_CreateVisit_UnknownTypeIsFree(t *testing.T) {
	svc, repo, _ := newTestService()
	v := sampleVisit(101)
	v.VisitType = "Walk-in"

	require.NoError(t, svc.CreateVisit(context.Background(), v))
	assert.True(t, repo.items[101].VisitFee.IsZero())
}

func TestService_CreateVisit_KeepsExplicitStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	v := sampleVisit(102)
	v.Status = StatusScheduled

	require.NoError(t, svc.CreateVisit(context.Background(), v))
	assert.Equal(t, StatusScheduled, repo.items[102].Status)
}

func TestService_CreateVisit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(v *Visit)
	}{
		{"zero id", func(v *Visit) { v.VisitID = 0 }},
		{"blank type", func(v *Visit) { v.VisitType = "   " }},
		{"zero duration", func(v *Visit) { v.VisitDuration = 0 }},
		{"negative duration", func(v *Visit) { v.VisitDuration = -5 }},
		{"missing date", func(v *Visit) { v.VisitDate = time.Time{} }},
		{"missing patient", func(v *Visit) { v.PatientID = 0 }},
		{"missing doctor", func(v *Visit) { v.DoctorID = 0 }},
		{"id above INTEGER range", func(v *Visit) { v.VisitID = 3000000000 }},
		{"duration above INTEGER range", func(v *Visit) { v.VisitDuration = 3000000000 }},
		{"patient above INTEGER range", func(v *Visit) { v.PatientID = 3000000000 }},
		{"doctor above INTEGER range", func(v *Visit) { v.DoctorID = 3000000000 }},
		{"visit type id above INTEGER range", func(v *Visit) { id := 3000000000; v.VisitTypeID = &id }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			v := sampleVisit(5)
			tt.mutate(v)

			err := svc.CreateVisit(context.Background(), v)
			assert.True(t, apperrors.IsInvalidInput(err), "got %v", err)
			assert.Empty(t, repo.items)
		})
	}
}

func TestService_CreateVisit_BoundMessages(t *testing.T) {
	svc, _, _ := newTestService()

	v := sampleVisit(3000000000)
	err := svc.CreateVisit(context.Background(), v)
	assert.Equal(t, "visitID must be at most 2147483647", apperrors.PublicMessage(err))

	v = sampleVisit(6)
	v.DoctorID = 3000000000
	err = svc.CreateVisit(context.Background(), v)
	assert.Equal(t, "doctorID must be at most 2147483647", apperrors.PublicMessage(err))
}

func TestService_CreateVisit_FeeAboveColumnRange(t *testing.T) {
	svc, repo, _ := newTestService()
	svc.fees = &mockFeeRepo{items: []*FeeSchedule{
		{FeeID: 1, VisitType: "Consultation", FeePerMinute: decimal.RequireFromString("9999.9999")},
	}}
	v := sampleVisit(9)
	v.VisitDuration = validate.MaxID

	err := svc.CreateVisit(context.Background(), v)
	require.True(t, apperrors.IsInvalidInput(err), "got %v", err)
	assert.Equal(t, "visitFee must be at most 9999999999.99", apperrors.PublicMessage(err))
	assert.Empty(t, repo.items)
}

func TestService_CreateVisit_MaxDurationWithinFeeRange(t *testing.T) {
	svc, repo, _ := newTestService()
	svc.fees = &mockFeeRepo{items: []*FeeSchedule{
		{FeeID: 1, VisitType: "Consultation", FeePerMinute: decimal.RequireFromString("1")},
	}}
	v := sampleVisit(10)
	v.VisitDuration = validate.MaxID

	require.NoError(t, svc.CreateVisit(context.Background(), v))
	assert.Equal(t, "2147483647.00", repo.items[10].VisitFee.StringFixed(2))
}

func TestService_CreateVisit_Duplicate(t *testing.T) {
	svc, _, _ := newTestService()
	require.NoError(t, svc.CreateVisit(context.Background(), sampleVisit(7)))

	err := svc.CreateVisit(context.Background(), sampleVisit(7))
	assert.True(t, apperrors.IsConflict(err))
}

func TestService_CreateVisit_UnknownPatient(t *testing.T) {
	svc, _, _ := newTestService()
	v := sampleVisit(8)
	v.PatientID = 99

	err := svc.CreateVisit(context.Background(), v)
	assert.True(t, apperrors.IsConflict(err))
}

func TestService_UpdateVisit_IDMismatch(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.UpdateVisit(context.Background(), 1, sampleVisit(2))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Equal(t, "ID mismatch", apperrors.PublicMessage(err))
}

func TestService_UpdateVisit_RepricesAndKeepsStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	v := sampleVisit(20)
	v.Status = StatusScheduled
	require.NoError(t, svc.CreateVisit(context.Background(), v))

	upd := sampleVisit(20)
	upd.VisitType = "Micro"
	upd.VisitDuration = 1
	require.NoError(t, svc.UpdateVisit(context.Background(), 20, upd))

	stored := repo.items[20]
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.Equal(t, "0.13", stored.VisitFee.StringFixed(2))
}

func TestService_UpdateVisit_ChangesStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	require.NoError(t, svc.CreateVisit(context.Background(), sampleVisit(21)))

	upd := sampleVisit(21)
	upd.Status = StatusScheduled
	require.NoError(t, svc.UpdateVisit(context.Background(), 21, upd))
	assert.Equal(t, StatusScheduled, repo.items[21].Status)
}

func TestService_UpdateVisit_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.UpdateVisit(context.Background(), 404, sampleVisit(404))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_DeleteVisit(t *testing.T) {
	svc, repo, rec := newTestService()
	require.NoError(t, svc.CreateVisit(context.Background(), sampleVisit(30)))
	require.NoError(t, svc.CreateVisit(context.Background(), sampleVisit(31)))
	repo.referenced[31] = true

	require.NoError(t, svc.DeleteVisit(context.Background(), 30))
	assert.NotContains(t, repo.items, 30)
	assert.Contains(t, rec.lines, "deleted visit 30")

	err := svc.DeleteVisit(context.Background(), 31)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, msgVisitReferenced, apperrors.PublicMessage(err))

	assert.True(t, apperrors.IsNotFound(svc.DeleteVisit(context.Background(), 30)))
}

func TestService_ListVisits_Filters(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for i, st := range []Status{StatusPending, StatusScheduled, StatusScheduled} {
		v := sampleVisit(40 + i)
		v.Status = st
		v.VisitDate = v.VisitDate.AddDate(0, 0, i)
		require.NoError(t, svc.CreateVisit(ctx, v))
	}

	items, total, err := svc.ListVisits(ctx, VisitFilter{Status: StatusScheduled}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	from := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	items, _, err = svc.ListVisits(ctx, VisitFilter{From: &from}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	to := from.Add(-time.Hour)
	_, _, err = svc.ListVisits(ctx, VisitFilter{From: &from, To: &to}, 10, 0)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Scheduled ")
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, st)

	_, err = ParseStatus("cancelled")
	assert.True(t, apperrors.IsInvalidInput(err))
}
