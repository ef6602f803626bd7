// Package grades bridges parsed outcome operations to the gradebook store
// and the local submission ledger.
//
// The tool speaks in fractions (0.0-1.0); the gradebook stores percent
// values. Scaling happens here and nowhere else. The ledger is bookkeeping
// independent of the authoritative gradebook: it records which launches have
// submitted grades and when, and is kept consistent with every update.
package grades

import (
	"context"

	"github.com/campusbridge/lti-outcomes/internal/lti"
)

// ToolInstance carries the fields of a configured integration the bridge
// needs to address gradebook items.
type ToolInstance struct {
	ID       int64
	CourseID int64
	Name     string
}

// Item identifies one gradebook slot. The item name is derived from the tool
// instance name so graders can recognize the column.
type Item struct {
	CourseID       int64
	ToolInstanceID int64
	Name           string
}

// GradeStore is the external gradebook. Percent values are 0-100; a nil
// percent with the deleted marker clears the grade.
//
// Implementations must return errors rather than sentinel statuses - the
// bridge propagates the cause instead of collapsing it to a boolean.
type GradeStore interface {
	UpdateGrade(ctx context.Context, item Item, userID int64, percent *float64, deleted bool) error

	// ReadGrade reports ok=false when the user has no grade for the item.
	ReadGrade(ctx context.Context, item Item, userID int64) (percent float64, ok bool, err error)
}

// Submission states recorded in the ledger.
const (
	StateSubmitted = 1
	StateUpdated   = 2
)

// Submission is one grade submission to be upserted into the ledger.
type Submission struct {
	ToolInstanceID int64
	UserID         int64
	LaunchID       int64
	GradePercent   float64
}

// SubmissionLedger tracks grade submissions per (tool instance, user,
// launch). Upsert must be atomic: an existing row is updated in place
// (state becomes StateUpdated, dateupdated refreshed), a new row is inserted
// with StateSubmitted and the grade recorded as the original grade.
// Replaying the same submission therefore never duplicates rows.
type SubmissionLedger interface {
	UpsertSubmission(ctx context.Context, sub Submission) error
}

// Bridge applies grade operations. Store and ledger handles are injected -
// the bridge owns no ambient state.
type Bridge struct {
	store  GradeStore
	ledger SubmissionLedger
}

func NewBridge(store GradeStore, ledger SubmissionLedger) *Bridge {
	return &Bridge{store: store, ledger: ledger}
}

func (b *Bridge) item(inst ToolInstance) Item {
	return Item{
		CourseID:       inst.CourseID,
		ToolInstanceID: inst.ID,
		Name:           inst.Name,
	}
}

// UpdateGrade writes the scaled grade to the gradebook and upserts the
// submission ledger. The ledger write follows the gradebook write; a failure
// in either surfaces as an ErrCodeStore error before a success envelope can
// be produced.
func (b *Bridge) UpdateGrade(ctx context.Context, inst ToolInstance, userID, launchID int64, fraction float64) error {
	percent := fraction * 100

	if err := b.store.UpdateGrade(ctx, b.item(inst), userID, &percent, false); err != nil {
		return lti.WrapStoreError(err, "grade store rejected the update")
	}

	err := b.ledger.UpsertSubmission(ctx, Submission{
		ToolInstanceID: inst.ID,
		UserID:         userID,
		LaunchID:       launchID,
		GradePercent:   percent,
	})
	if err != nil {
		return lti.WrapStoreError(err, "failed to record submission")
	}

	return nil
}

// ReadGrade returns the user's grade for this tool instance as a fraction,
// ok=false when no grade exists.
func (b *Bridge) ReadGrade(ctx context.Context, inst ToolInstance, userID int64) (float64, bool, error) {
	percent, ok, err := b.store.ReadGrade(ctx, b.item(inst), userID)
	if err != nil {
		return 0, false, lti.WrapStoreError(err, "grade store read failed")
	}
	if !ok {
		return 0, false, nil
	}
	return percent / 100, true, nil
}

// DeleteGrade clears the user's grade by writing a null grade with the
// deletion marker.
func (b *Bridge) DeleteGrade(ctx context.Context, inst ToolInstance, userID int64) error {
	if err := b.store.UpdateGrade(ctx, b.item(inst), userID, nil, true); err != nil {
		return lti.WrapStoreError(err, "grade store rejected the delete")
	}
	return nil
}
