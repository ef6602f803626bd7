// Package database provides the PostgreSQL-backed store for tool instances,
// the submission ledger, the gradebook and course rosters.
//
// Queries is the single entry point; it also satisfies the grades package's
// GradeStore and SubmissionLedger interfaces so it can be injected directly
// into the grade bridge.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusbridge/lti-outcomes/internal/grades"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// GetToolInstanceByID loads a tool instance.
func (q *Queries) GetToolInstanceByID(ctx context.Context, id int64) (ToolInstance, error) {
	const query = `
		SELECT id, type_id, course_id, name, consumer_key, shared_secret, previous_secret, service_salt,
		       instructor_choice_send_name, instructor_choice_send_email, instructor_choice_accept_grades
		FROM lti_tool_instances
		WHERE id = $1`

	var t ToolInstance
	err := q.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.TypeID, &t.CourseID, &t.Name, &t.ConsumerKey, &t.SharedSecret, &t.PreviousSecret, &t.ServiceSalt,
		&t.InstructorChoiceSendName, &t.InstructorChoiceSendEmail, &t.InstructorChoiceAcceptGrades,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ToolInstance{}, fmt.Errorf("tool instance %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ToolInstance{}, fmt.Errorf("failed to load tool instance %d: %w", id, err)
	}
	return t, nil
}

// GetToolTypeConfig loads the tri-state policies of a tool type.
func (q *Queries) GetToolTypeConfig(ctx context.Context, typeID int64) (ToolTypeConfig, error) {
	const query = `
		SELECT id, name, send_name, send_email, accept_grades
		FROM lti_tool_types
		WHERE id = $1`

	var c ToolTypeConfig
	err := q.pool.QueryRow(ctx, query, typeID).Scan(&c.ID, &c.Name, &c.SendName, &c.SendEmail, &c.AcceptGrades)
	if errors.Is(err, pgx.ErrNoRows) {
		return ToolTypeConfig{}, fmt.Errorf("tool type %d: %w", typeID, ErrNotFound)
	}
	if err != nil {
		return ToolTypeConfig{}, fmt.Errorf("failed to load tool type %d: %w", typeID, err)
	}
	return c, nil
}

// UpsertSubmission records a grade submission in the ledger.
//
// The conflict target (tool_instance_id, user_id, launch_id) makes replays
// idempotent: a second submission for the same launch updates the existing
// row (state 2) instead of inserting a new one.
func (q *Queries) UpsertSubmission(ctx context.Context, sub grades.Submission) error {
	const query = `
		INSERT INTO lti_submissions
			(tool_instance_id, user_id, launch_id, grade_percent, original_grade, state, date_submitted, date_updated)
		VALUES ($1, $2, $3, $4, $4, $5, now(), now())
		ON CONFLICT (tool_instance_id, user_id, launch_id) DO UPDATE SET
			grade_percent = EXCLUDED.grade_percent,
			state         = $6,
			date_updated  = now()`

	_, err := q.pool.Exec(ctx, query,
		sub.ToolInstanceID, sub.UserID, sub.LaunchID, sub.GradePercent,
		grades.StateSubmitted, grades.StateUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}

// UpdateGrade upserts the gradebook item for the tool instance and then the
// user's grade row. A nil percent with the deleted marker clears the grade.
func (q *Queries) UpdateGrade(ctx context.Context, item grades.Item, userID int64, percent *float64, deleted bool) error {
	const itemQuery = `
		INSERT INTO grade_items (course_id, tool_instance_id, item_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tool_instance_id) DO UPDATE SET item_name = EXCLUDED.item_name
		RETURNING id`

	const gradeQuery = `
		INSERT INTO grades (item_id, user_id, percent, deleted, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (item_id, user_id) DO UPDATE SET
			percent    = EXCLUDED.percent,
			deleted    = EXCLUDED.deleted,
			updated_at = now()`

	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var itemID int64
	if err := tx.QueryRow(ctx, itemQuery, item.CourseID, item.ToolInstanceID, item.Name).Scan(&itemID); err != nil {
		return fmt.Errorf("failed to upsert grade item: %w", err)
	}

	if _, err := tx.Exec(ctx, gradeQuery, itemID, userID, percent, deleted); err != nil {
		return fmt.Errorf("failed to upsert grade: %w", err)
	}

	return tx.Commit(ctx)
}

// ReadGrade returns the first live grade entry for the item/user,
// ok=false when absent.
func (q *Queries) ReadGrade(ctx context.Context, item grades.Item, userID int64) (float64, bool, error) {
	const query = `
		SELECT g.percent
		FROM grades g
		JOIN grade_items gi ON gi.id = g.item_id
		WHERE gi.tool_instance_id = $1 AND g.user_id = $2 AND NOT g.deleted AND g.percent IS NOT NULL
		ORDER BY g.id
		LIMIT 1`

	var percent float64
	err := q.pool.QueryRow(ctx, query, item.ToolInstanceID, userID).Scan(&percent)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read grade: %w", err)
	}
	return percent, true, nil
}

// ListCourseMembers returns the roster of a course with each member's role
// and, for result sourcedid issuance, their latest recorded launch of the
// tool instance.
func (q *Queries) ListCourseMembers(ctx context.Context, courseID, toolInstanceID int64) ([]CourseMember, error) {
	const query = `
		SELECT cm.user_id, cm.first_name, cm.last_name, cm.email, cm.role_shortname,
		       COALESCE(s.last_launch_id, 0)
		FROM course_members cm
		LEFT JOIN (
			SELECT user_id, MAX(launch_id) AS last_launch_id
			FROM lti_submissions
			WHERE tool_instance_id = $2
			GROUP BY user_id
		) s ON s.user_id = cm.user_id
		WHERE cm.course_id = $1
		ORDER BY cm.user_id`

	rows, err := q.pool.Query(ctx, query, courseID, toolInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list course members: %w", err)
	}
	defer rows.Close()

	var members []CourseMember
	for rows.Next() {
		var m CourseMember
		if err := rows.Scan(&m.UserID, &m.FirstName, &m.LastName, &m.Email, &m.RoleShortname, &m.LastLaunchID); err != nil {
			return nil, fmt.Errorf("failed to scan course member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMemberGroups returns the course groups a member belongs to.
func (q *Queries) ListMemberGroups(ctx context.Context, courseID, userID int64) ([]CourseGroup, error) {
	const query = `
		SELECT cg.id, cg.name
		FROM course_groups cg
		JOIN group_members gm ON gm.group_id = cg.id
		WHERE cg.course_id = $1 AND gm.user_id = $2
		ORDER BY cg.id`

	rows, err := q.pool.Query(ctx, query, courseID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member groups: %w", err)
	}
	defer rows.Close()

	var groups []CourseGroup
	for rows.Next() {
		var g CourseGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
