package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/schedule"
)

const eventSelect = `
	SELECT ev.id, ev.class_id, c.name AS class_name, ev.title, ev.description, ev.start_time, ev.end_time,
		ev.is_recurring, ev.recurrence_pattern, ev.created_by, ev.created_at
	FROM schedule_event ev JOIN class c ON c.id = ev.class_id`

type eventRow struct {
	ID                int         `db:"id"`
	ClassID           int         `db:"class_id"`
	ClassName         string      `db:"class_name"`
	Title             string      `db:"title"`
	Description       string      `db:"description"`
	StartTime         time.Time   `db:"start_time"`
	EndTime           time.Time   `db:"end_time"`
	IsRecurring       bool        `db:"is_recurring"`
	RecurrencePattern null.String `db:"recurrence_pattern"`
	CreatedBy         int         `db:"created_by"`
	CreatedAt         time.Time   `db:"created_at"`
}

func (r eventRow) event() schedule.Event {
	return schedule.Event{
		ID:                r.ID,
		ClassID:           r.ClassID,
		ClassName:         r.ClassName,
		Title:             r.Title,
		Description:       r.Description,
		StartTime:         r.StartTime.UTC(),
		EndTime:           r.EndTime.UTC(),
		IsRecurring:       r.IsRecurring,
		RecurrencePattern: r.RecurrencePattern.String,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt.UTC(),
	}
}

type scheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *sqlx.DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateEvent(ctx context.Context, evt schedule.Event) (schedule.Event, error) {
	q := repo.db.Rebind(`
		INSERT INTO schedule_event (class_id, title, description, start_time, end_time, is_recurring,
			recurrence_pattern, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.db.QueryRowxContext(ctx, q,
		evt.ClassID, evt.Title, evt.Description, evt.StartTime.UTC(), evt.EndTime.UTC(), evt.IsRecurring,
		nullString(evt.RecurrencePattern), evt.CreatedBy, evt.CreatedAt.UTC(),
	).Scan(&evt.ID)
	if err != nil {
		return schedule.Event{}, errors.Wrap(err, "inserting event")
	}
	return evt, nil
}

func (repo *scheduleRepository) GetEvent(ctx context.Context, id int) (schedule.Event, error) {
	var row eventRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(eventSelect+` WHERE ev.id = ?`), id); err != nil {
		return schedule.Event{}, trapNoRowsErr(err, schedule.ErrNotFound, "getting event")
	}
	return row.event(), nil
}

func (repo *scheduleRepository) QueryEvents(ctx context.Context, filter schedule.QueryFilter) ([]schedule.Event, error) {
	var where conditions
	where.add("ev.class_id = ANY(?)", pq.Array(filter.ClassIDs))
	if !filter.From.IsZero() {
		where.add("ev.start_time >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where.add("ev.start_time <= ?", filter.To.UTC())
	}

	var rows []eventRow
	q := eventSelect + where.String() + ` ORDER BY ev.start_time, ev.id`
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]schedule.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.event())
	}
	return events, nil
}

func (repo *scheduleRepository) DeleteEvent(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM schedule_event WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return checkAffected(res, schedule.ErrNotFound)
}
