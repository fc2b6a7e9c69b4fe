package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) fill(evt schedule.Event) schedule.Event {
	if c, ok := repo.db.classes[evt.ClassID]; ok {
		evt.ClassName = c.Name
	}
	return evt
}

func (repo *scheduleRepository) CreateEvent(ctx context.Context, evt schedule.Event) (schedule.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	evt.ID = repo.db.nextPK("event")
	repo.db.events[evt.ID] = &evt
	return repo.fill(evt), nil
}

func (repo *scheduleRepository) GetEvent(ctx context.Context, id int) (schedule.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if evt, ok := repo.db.events[id]; ok {
		return repo.fill(*evt), nil
	}
	return schedule.Event{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) QueryEvents(ctx context.Context, filter schedule.QueryFilter) ([]schedule.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]schedule.Event, 0)
	for _, evt := range repo.db.events {
		if !containsInt(filter.ClassIDs, evt.ClassID) ||
			(!filter.From.IsZero() && evt.StartTime.Before(filter.From)) ||
			(!filter.To.IsZero() && evt.StartTime.After(filter.To)) {
			continue
		}
		events = append(events, repo.fill(*evt))
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (repo *scheduleRepository) DeleteEvent(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.events[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(repo.db.events, id)
	return nil
}
