package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/darasa/core/organization"
)

type organizationRepository struct {
	db *DB
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(db *DB) *organizationRepository {
	return &organizationRepository{db: db}
}

func (repo *organizationRepository) CreateOrganization(
	ctx context.Context,
	org organization.Organization,
	creator organization.Membership,
) (organization.Organization, organization.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	org.ID = repo.db.nextPK("organization")
	repo.db.orgs[org.ID] = &org

	creator.OrganizationID = org.ID
	m, _ := repo.replaceMembership(creator)
	return org, m, nil
}

func (repo *organizationRepository) GetOrganization(ctx context.Context, id int) (organization.Organization, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if org, ok := repo.db.orgs[id]; ok {
		return *org, nil
	}
	return organization.Organization{}, organization.ErrNotFound
}

func (repo *organizationRepository) QueryOrganizations(ctx context.Context, filter organization.QueryFilter, includeID int) ([]organization.Organization, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	orgs := make([]organization.Organization, 0)
	for _, org := range repo.db.orgs {
		if !org.IsPublic && org.ID != includeID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(org.Name), search) &&
			!strings.Contains(strings.ToLower(org.Location), search) {
			continue
		}
		orgs = append(orgs, *org)
	}
	sort.Slice(orgs, func(i, j int) bool {
		if orgs[i].Name != orgs[j].Name {
			return orgs[i].Name < orgs[j].Name
		}
		return orgs[i].ID < orgs[j].ID
	})
	return orgs, nil
}

func (repo *organizationRepository) UpdateOrganization(ctx context.Context, org organization.Organization) (organization.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.orgs[org.ID]; !ok {
		return organization.Organization{}, organization.ErrNotFound
	}
	repo.db.orgs[org.ID] = &org
	return org, nil
}

func (repo *organizationRepository) GetMembership(ctx context.Context, userID int) (organization.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m := repo.membershipOf(userID); m != nil {
		return *m, nil
	}
	return organization.Membership{}, organization.ErrMembershipNotFound
}

func (repo *organizationRepository) ReplaceMembership(ctx context.Context, m organization.Membership) (organization.Membership, *organization.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.orgs[m.OrganizationID]; !ok {
		return organization.Membership{}, nil, organization.ErrNotFound
	}
	m, prev := repo.replaceMembership(m)
	return m, prev, nil
}

// replaceMembership must be called with the write lock held.
func (repo *organizationRepository) replaceMembership(m organization.Membership) (organization.Membership, *organization.Membership) {
	var prev *organization.Membership
	if old := repo.membershipOf(m.UserID); old != nil {
		cp := *old
		prev = &cp
		delete(repo.db.memberships, old.ID)
	}
	m.ID = repo.db.nextPK("membership")
	repo.db.memberships[m.ID] = &m
	return m, prev
}

func (repo *organizationRepository) membershipOf(userID int) *organization.Membership {
	for _, m := range repo.db.memberships {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

func (repo *organizationRepository) UpdateMembership(ctx context.Context, m organization.Membership) (organization.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.memberships[m.ID]; !ok {
		return organization.Membership{}, organization.ErrMembershipNotFound
	}
	repo.db.memberships[m.ID] = &m
	return m, nil
}

func (repo *organizationRepository) DeleteMembership(ctx context.Context, userID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m := repo.membershipOf(userID)
	if m == nil {
		return organization.ErrMembershipNotFound
	}
	delete(repo.db.memberships, m.ID)
	return nil
}

func (repo *organizationRepository) QueryMembers(ctx context.Context, orgID int, filter organization.MemberFilter) ([]organization.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]organization.Member, 0)
	for _, m := range repo.db.memberships {
		if m.OrganizationID != orgID {
			continue
		}
		usr, ok := repo.db.users[m.UserID]
		if !ok {
			continue
		}
		if len(filter.UserRoles) > 0 && !containsString(filter.UserRoles, usr.Role) {
			continue
		}
		members = append(members, organization.Member{
			Membership: *m,
			Username:   usr.Username,
			Email:      usr.Email,
			FirstName:  usr.FirstName,
			LastName:   usr.LastName,
			UserRole:   usr.Role,
			IsActive:   usr.IsActive,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
