package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if usr.ID == excludeID {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = repo.db.nextPK("user")
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := repo.query()
	if filter != nil && !filter.IsEmpty() {
		filtered := make([]user.User, 0, len(users))
		for _, usr := range users {
			if matchUser(usr, filter) {
				filtered = append(filtered, usr)
			}
		}
		users = filtered
	}

	// apply the orderings from the least to the most significant
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		sort.SliceStable(users, func(a, b int) bool {
			less, greater := compareUsers(users[a], users[b], ord.Field)
			if ord.Ascending {
				return less
			}
			return greater
		})
	}
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(usr.FirstName), s) ||
			strings.Contains(strings.ToLower(usr.LastName), s) ||
			strings.Contains(usr.Username, s) ||
			strings.Contains(usr.Email, s)) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var ok bool
		for _, role := range filter.Roles {
			if usr.Role == role {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	if filter.IDs != nil && !containsInt(filter.IDs, usr.ID) {
		return false
	}
	return true
}

// compareUsers reports whether a < b and a > b on `field`.
func compareUsers(a, b user.User, field string) (less, greater bool) {
	switch field {
	case "id":
		return a.ID < b.ID, a.ID > b.ID
	case "username":
		return a.Username < b.Username, a.Username > b.Username
	case "email":
		return a.Email < b.Email, a.Email > b.Email
	case "first_name":
		return a.FirstName < b.FirstName, a.FirstName > b.FirstName
	case "last_name":
		return a.LastName < b.LastName, a.LastName > b.LastName
	case "role":
		return a.Role < b.Role, a.Role > b.Role
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.After(b.CreatedAt)
	case "last_login":
		return a.LastLogin.Before(b.LastLogin), a.LastLogin.After(b.LastLogin)
	}
	return false, false
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.query() {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) CreateSupervision(ctx context.Context, sup user.Supervision) (user.Supervision, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.supervisions {
		if s.SupervisorID == sup.SupervisorID && s.SubordinateID == sup.SubordinateID {
			return user.Supervision{}, user.ErrSupervisionExists
		}
	}
	sup.ID = repo.db.nextPK("supervision")
	repo.db.supervisions[sup.ID] = &sup
	return sup, nil
}

func (repo *userRepository) QuerySupervisions(ctx context.Context, filter user.SupervisionFilter) ([]user.Supervision, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sups := make([]user.Supervision, 0)
	for _, s := range repo.db.supervisions {
		if (filter.ID != 0 && s.ID != filter.ID) ||
			(filter.SupervisorID != 0 && s.SupervisorID != filter.SupervisorID) ||
			(filter.SubordinateID != 0 && s.SubordinateID != filter.SubordinateID) {
			continue
		}
		sups = append(sups, *s)
	}
	sort.Slice(sups, func(i, j int) bool { return sups[i].ID < sups[j].ID })
	return sups, nil
}

func (repo *userRepository) DeleteSupervision(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.supervisions[id]; !ok {
		return user.ErrSupervisionNotFound
	}
	delete(repo.db.supervisions, id)
	return nil
}
