package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/schoolsoft-sync/internal/persistence"
)

// TimetableRepository implements persistence.TimetableRepository using SQLite.
type TimetableRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewTimetableRepository creates a new SQLite timetable repository.
func NewTimetableRepository(pool *ConnectionPool) *TimetableRepository {
	return &TimetableRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const lessonColumns = `
	l.id, l.occasion_id, l.subject_id, l.weekday, l.week, l.epoch_day,
	l.start_seconds, l.end_seconds, s.name, o.location
`

const lessonJoin = `
	FROM lessons l
	JOIN subjects s ON s.id = l.subject_id
	JOIN occasions o ON o.id = l.occasion_id
`

// UpsertSubject inserts the subject unless a row with the same stable id
// already exists. The returned bool reports whether an insert happened.
func (r *TimetableRepository) UpsertSubject(ctx context.Context, subject persistence.Subject) (bool, error) {
	if subject.ID == "" {
		return false, persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx,
		"INSERT OR IGNORE INTO subjects (id, subject_id, name) VALUES (?, ?, ?)",
		subject.ID, subject.SubjectID, subject.Name,
	)
	if err != nil {
		return false, r.mapper.MapError(err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return inserted > 0, nil
}

// UpsertOccasion inserts the occasion unless a row with the same stable id
// already exists. The returned bool reports whether an insert happened.
func (r *TimetableRepository) UpsertOccasion(ctx context.Context, occasion persistence.Occasion) (bool, error) {
	if occasion.ID == "" {
		return false, persistence.ErrConstraintViolation
	}
	if occasion.StartSeconds >= occasion.EndSeconds {
		return false, persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `
		INSERT OR IGNORE INTO occasions (id, occasion_id, subject_id, location, start_seconds, end_seconds, weekday)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		occasion.ID, occasion.OccasionID, occasion.SubjectID, occasion.Location,
		occasion.StartSeconds, occasion.EndSeconds, occasion.Weekday,
	)
	if err != nil {
		return false, r.mapper.MapError(err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return inserted > 0, nil
}

// ReplaceTimetable swaps the entire cached timetable inside one transaction.
// Readers see the old contents until the commit; any failure rolls back to
// the previous consistent state. A non-nil validate runs after the writes
// and before the commit; its error aborts the replacement.
func (r *TimetableRepository) ReplaceTimetable(ctx context.Context, subjects []persistence.Subject, occasions []persistence.Occasion, lessons []persistence.Lesson, validate func() error) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			// Children first to keep the foreign keys satisfied.
			for _, table := range []string{"lessons", "occasions", "subjects"} {
				if _, err := r.helper.ExecTx(tx, "DELETE FROM "+table); err != nil {
					return r.mapper.MapError(err)
				}
			}

			for _, subject := range subjects {
				_, err := r.helper.ExecTx(tx,
					"INSERT OR IGNORE INTO subjects (id, subject_id, name) VALUES (?, ?, ?)",
					subject.ID, subject.SubjectID, subject.Name,
				)
				if err != nil {
					return r.mapper.MapError(err)
				}
			}

			for _, occasion := range occasions {
				_, err := r.helper.ExecTx(tx, `
					INSERT OR IGNORE INTO occasions (id, occasion_id, subject_id, location, start_seconds, end_seconds, weekday)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					occasion.ID, occasion.OccasionID, occasion.SubjectID, occasion.Location,
					occasion.StartSeconds, occasion.EndSeconds, occasion.Weekday,
				)
				if err != nil {
					return r.mapper.MapError(err)
				}
			}

			for _, lesson := range lessons {
				_, err := r.helper.ExecTx(tx, `
					INSERT INTO lessons (id, occasion_id, subject_id, weekday, week, epoch_day, start_seconds, end_seconds)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					lesson.ID, lesson.OccasionID, lesson.SubjectID, lesson.Weekday,
					lesson.Week, lesson.EpochDay, lesson.StartSeconds, lesson.EndSeconds,
				)
				if err != nil {
					return r.mapper.MapError(err)
				}
			}

			if validate != nil {
				if err := validate(); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// LessonsByWeek returns all lessons for the week, optionally narrowed to one
// weekday, ordered by day and start time.
func (r *TimetableRepository) LessonsByWeek(ctx context.Context, week int, weekday *int) ([]persistence.LessonRow, error) {
	query := "SELECT " + lessonColumns + lessonJoin + " WHERE l.week = ?"
	args := []any{week}
	if weekday != nil {
		query += " AND l.weekday = ?"
		args = append(args, *weekday)
	}
	query += " ORDER BY l.weekday ASC, l.start_seconds ASC, l.id ASC"
	return r.queryLessons(ctx, query, args...)
}

// LessonsInRange returns lessons within the bounds sorted ascending by
// (date, start time).
func (r *TimetableRepository) LessonsInRange(ctx context.Context, filter persistence.LessonFilter) ([]persistence.LessonRow, error) {
	query := "SELECT " + lessonColumns + lessonJoin
	var conditions []string
	var args []any

	if filter.After != nil {
		conditions = append(conditions, "(l.epoch_day > ? OR (l.epoch_day = ? AND l.start_seconds >= ?))")
		args = append(args, filter.After.EpochDay, filter.After.EpochDay, filter.After.Seconds)
	}
	if filter.Before != nil {
		conditions = append(conditions, "(l.epoch_day < ? OR (l.epoch_day = ? AND l.start_seconds < ?))")
		args = append(args, filter.Before.EpochDay, filter.Before.EpochDay, filter.Before.Seconds)
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}
	query += " ORDER BY l.epoch_day ASC, l.start_seconds ASC, l.id ASC"

	return r.queryLessons(ctx, query, args...)
}

// Current returns the lesson whose [start, end) interval contains the instant.
func (r *TimetableRepository) Current(ctx context.Context, at persistence.Instant) (persistence.LessonRow, bool, error) {
	query := "SELECT " + lessonColumns + lessonJoin + `
		WHERE l.epoch_day = ? AND l.start_seconds <= ? AND l.end_seconds > ?
		ORDER BY l.start_seconds ASC LIMIT 1`
	return r.queryLesson(ctx, query, at.EpochDay, at.Seconds, at.Seconds)
}

// Previous returns the lesson with the latest end at or before the instant.
func (r *TimetableRepository) Previous(ctx context.Context, at persistence.Instant) (persistence.LessonRow, bool, error) {
	query := "SELECT " + lessonColumns + lessonJoin + `
		WHERE l.epoch_day < ? OR (l.epoch_day = ? AND l.end_seconds <= ?)
		ORDER BY l.epoch_day DESC, l.end_seconds DESC LIMIT 1`
	return r.queryLesson(ctx, query, at.EpochDay, at.EpochDay, at.Seconds)
}

// Next returns the lesson with the earliest start after the instant.
func (r *TimetableRepository) Next(ctx context.Context, at persistence.Instant) (persistence.LessonRow, bool, error) {
	query := "SELECT " + lessonColumns + lessonJoin + `
		WHERE l.epoch_day > ? OR (l.epoch_day = ? AND l.start_seconds > ?)
		ORDER BY l.epoch_day ASC, l.start_seconds ASC LIMIT 1`
	return r.queryLesson(ctx, query, at.EpochDay, at.EpochDay, at.Seconds)
}

func (r *TimetableRepository) queryLessons(ctx context.Context, query string, args ...any) ([]persistence.LessonRow, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var lessons []persistence.LessonRow
	for rows.Next() {
		var lesson persistence.LessonRow
		if err := scanLesson(rows.Scan, &lesson); err != nil {
			return nil, r.mapper.MapError(err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return lessons, nil
}

func (r *TimetableRepository) queryLesson(ctx context.Context, query string, args ...any) (persistence.LessonRow, bool, error) {
	var lesson persistence.LessonRow
	err := scanLesson(r.helper.QueryRow(ctx, query, args...).Scan, &lesson)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.LessonRow{}, false, nil
		}
		return persistence.LessonRow{}, false, r.mapper.MapError(err)
	}
	return lesson, true, nil
}

func scanLesson(scan func(...any) error, lesson *persistence.LessonRow) error {
	return scan(
		&lesson.ID,
		&lesson.OccasionID,
		&lesson.SubjectID,
		&lesson.Weekday,
		&lesson.Week,
		&lesson.EpochDay,
		&lesson.StartSeconds,
		&lesson.EndSeconds,
		&lesson.SubjectName,
		&lesson.Location,
	)
}
