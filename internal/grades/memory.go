package grades

// memory.go provides in-memory GradeStore and SubmissionLedger
// implementations with the same upsert semantics as the SQL-backed store,
// for tests that don't want a database.

import (
	"context"
	"sync"
	"time"
)

type gradeKey struct {
	toolInstanceID int64
	userID         int64
}

type submissionKey struct {
	toolInstanceID int64
	userID         int64
	launchID       int64
}

type gradeCell struct {
	percent *float64
	deleted bool
}

// LedgerRow is the in-memory form of a submission ledger entry.
type LedgerRow struct {
	ToolInstanceID int64
	UserID         int64
	LaunchID       int64
	GradePercent   float64
	OriginalGrade  float64
	State          int
	DateSubmitted  time.Time
	DateUpdated    time.Time
}

// MemoryStore implements GradeStore and SubmissionLedger in memory.
type MemoryStore struct {
	mu          sync.Mutex
	grades      map[gradeKey]gradeCell
	submissions map[submissionKey]LedgerRow

	// now is overridable for tests
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		grades:      make(map[gradeKey]gradeCell),
		submissions: make(map[submissionKey]LedgerRow),
		now:         time.Now,
	}
}

func (m *MemoryStore) UpdateGrade(_ context.Context, item Item, userID int64, percent *float64, deleted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.grades[gradeKey{item.ToolInstanceID, userID}] = gradeCell{percent: percent, deleted: deleted}
	return nil
}

func (m *MemoryStore) ReadGrade(_ context.Context, item Item, userID int64) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell, ok := m.grades[gradeKey{item.ToolInstanceID, userID}]
	if !ok || cell.deleted || cell.percent == nil {
		return 0, false, nil
	}
	return *cell.percent, true, nil
}

func (m *MemoryStore) UpsertSubmission(_ context.Context, sub Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := submissionKey{sub.ToolInstanceID, sub.UserID, sub.LaunchID}
	now := m.now()

	if row, ok := m.submissions[key]; ok {
		row.GradePercent = sub.GradePercent
		row.State = StateUpdated
		row.DateUpdated = now
		m.submissions[key] = row
		return nil
	}

	m.submissions[key] = LedgerRow{
		ToolInstanceID: sub.ToolInstanceID,
		UserID:         sub.UserID,
		LaunchID:       sub.LaunchID,
		GradePercent:   sub.GradePercent,
		OriginalGrade:  sub.GradePercent,
		State:          StateSubmitted,
		DateSubmitted:  now,
		DateUpdated:    now,
	}
	return nil
}

// Submissions returns a snapshot of the ledger rows.
func (m *MemoryStore) Submissions() []LedgerRow {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]LedgerRow, 0, len(m.submissions))
	for _, row := range m.submissions {
		rows = append(rows, row)
	}
	return rows
}
