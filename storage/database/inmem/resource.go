package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/resource"
)

type resourceRepository struct {
	db *DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	res.ID = repo.db.nextPK("resource")
	repo.db.resources[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) GetResource(ctx context.Context, id int) (resource.Resource, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if res, ok := repo.db.resources[id]; ok {
		return *res, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) QueryResources(ctx context.Context, filter resource.QueryFilter) ([]resource.Resource, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	resources := make([]resource.Resource, 0)
	for _, res := range repo.db.resources {
		if (filter.OrganizationID != 0 && res.OrganizationID != filter.OrganizationID) ||
			(filter.ClassID != 0 && res.ClassID != filter.ClassID) ||
			(filter.GradeLevel != 0 && res.GradeLevel != filter.GradeLevel) ||
			(filter.SubjectID != 0 && res.SubjectID != filter.SubjectID) ||
			(filter.ResourceType != "" && res.ResourceType != filter.ResourceType) {
			continue
		}
		resources = append(resources, *res)
	}
	sort.Slice(resources, func(i, j int) bool {
		if !resources[i].CreatedAt.Equal(resources[j].CreatedAt) {
			return resources[i].CreatedAt.After(resources[j].CreatedAt)
		}
		return resources[i].ID > resources[j].ID
	})
	return resources, nil
}

func (repo *resourceRepository) UpdateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.resources[res.ID]; !ok {
		return resource.Resource{}, resource.ErrNotFound
	}
	repo.db.resources[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) DeleteResource(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.resources[id]; !ok {
		return resource.ErrNotFound
	}
	delete(repo.db.resources, id)
	return nil
}
