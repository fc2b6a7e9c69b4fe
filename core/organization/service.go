package organization

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("organization")
	ErrMembershipNotFound = core.NewNotFoundError("membership")
	ErrNoOrganization     = errors.New("you are not a member of any organization")
	ErrMemberNotFound     = core.NewNotFoundError("member")
	ErrLastAdmin          = errors.New("an organization must keep at least one admin")
	ErrMembershipChanged  = errors.New("your membership changed in the meantime, please try again")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateOrganization inserts org and makes its creator an admin member, replacing any prior membership.
		CreateOrganization(ctx context.Context, org Organization, creator Membership) (Organization, Membership, error)
		GetOrganization(ctx context.Context, id int) (Organization, error)
		// QueryOrganizations returns the public organizations plus organization `includeID`.
		QueryOrganizations(ctx context.Context, filter QueryFilter, includeID int) ([]Organization, error)
		UpdateOrganization(ctx context.Context, org Organization) (Organization, error)

		GetMembership(ctx context.Context, userID int) (Membership, error)
		// ReplaceMembership atomically deletes any membership of m.UserID and inserts m.
		// The deleted membership, if any, is returned.
		ReplaceMembership(ctx context.Context, m Membership) (Membership, *Membership, error)
		UpdateMembership(ctx context.Context, m Membership) (Membership, error)
		DeleteMembership(ctx context.Context, userID int) error
		QueryMembers(ctx context.Context, orgID int, filter MemberFilter) ([]Member, error)
	}

	Service struct {
		repo      Repository
		publisher core.EventPublisher
		logger    core.Logger
	}
)

func NewService(repo Repository, publisher core.EventPublisher, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(publisher, "publisher"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// Principal builds the access.Principal of `usr` from their current membership.
func (svc *Service) Principal(ctx context.Context, usr user.User) (access.Principal, error) {
	p := access.Principal{UserID: usr.ID, Role: usr.Role, IsActive: usr.IsActive}
	m, err := svc.repo.GetMembership(ctx, usr.ID)
	switch {
	case err == nil:
		p.OrganizationID = m.OrganizationID
		p.OrgRole = m.Role
	case errors.Cause(err) != ErrMembershipNotFound:
		return access.Principal{}, errors.Wrap(err, "getting membership")
	}
	return p, nil
}

// Create creates an organization. Its creator becomes an admin member and leaves their previous organization.
func (svc *Service) Create(ctx context.Context, p access.Principal, no NewOrganization) (Organization, error) {
	if !access.CanCreateOrganization(p) {
		return Organization{}, core.ErrForbidden
	}
	if err := svc.checkCanMove(ctx, p); err != nil {
		return Organization{}, err
	}

	now := NowFunc().UTC()
	org := Organization{
		Name:              no.Name,
		Description:       no.Description,
		About:             no.About,
		Location:          no.Location,
		ContactEmail:      no.ContactEmail,
		ContactPhone:      no.ContactPhone,
		Website:           no.Website,
		IsPublic:          true,
		DiscussionPrivacy: access.DiscussionsPublic,
		CreatedBy:         p.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if no.IsPublic != nil {
		org.IsPublic = *no.IsPublic
	}
	if no.DiscussionPrivacy != "" {
		org.DiscussionPrivacy = no.DiscussionPrivacy
	}

	org, m, err := svc.repo.CreateOrganization(ctx, org, Membership{UserID: p.UserID, Role: access.OrgRoleAdmin, JoinedAt: now})
	if err != nil {
		if errors.Cause(err) == ErrMembershipChanged {
			return Organization{}, core.NewValidationError(ErrMembershipChanged)
		}
		return Organization{}, errors.Wrap(err, "creating organization")
	}
	svc.publishJoin(ctx, m, p.OrganizationID)
	return org, nil
}

// List returns the public organizations and the caller's own.
func (svc *Service) List(ctx context.Context, p access.Principal, filter QueryFilter) ([]Organization, error) {
	filter.Search = core.CleanString(filter.Search)
	orgs, err := svc.repo.QueryOrganizations(ctx, filter, p.OrganizationID)
	return orgs, errors.Wrap(err, "querying organizations")
}

// Get returns organization `id` if `p` can see it. Hidden organizations are reported as not found.
func (svc *Service) Get(ctx context.Context, p access.Principal, id int) (Organization, error) {
	org, err := svc.repo.GetOrganization(ctx, id)
	if err != nil {
		return Organization{}, errors.Wrap(err, "getting organization")
	}
	if !access.CanViewOrganization(p, org.Ref()) {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

// GetByID returns organization `id` regardless of its visibility, for internal lookups.
func (svc *Service) GetByID(ctx context.Context, id int) (Organization, error) {
	org, err := svc.repo.GetOrganization(ctx, id)
	return org, errors.Wrap(err, "getting organization")
}

func (svc *Service) Update(ctx context.Context, p access.Principal, id int, uo UpdateOrganization) (Organization, error) {
	org, err := svc.Get(ctx, p, id)
	if err != nil {
		return Organization{}, err
	}
	if !access.CanManageOrganization(p, org.Ref()) {
		return Organization{}, core.ErrForbidden
	}

	if uo.Name != nil {
		org.Name = core.CleanString(*uo.Name)
	}
	if uo.Description != nil {
		org.Description = *uo.Description
	}
	if uo.About != nil {
		org.About = *uo.About
	}
	if uo.Location != nil {
		org.Location = core.CleanString(*uo.Location)
	}
	if uo.ContactEmail != nil {
		org.ContactEmail = core.CleanString(*uo.ContactEmail, true /* lower */)
	}
	if uo.ContactPhone != nil {
		org.ContactPhone = core.CleanString(*uo.ContactPhone)
	}
	if uo.Website != nil {
		org.Website = core.CleanString(*uo.Website)
	}
	if uo.IsPublic != nil {
		org.IsPublic = *uo.IsPublic
	}
	if uo.DiscussionPrivacy != nil {
		org.DiscussionPrivacy = *uo.DiscussionPrivacy
	}
	org.UpdatedAt = NowFunc().UTC()

	org, err = svc.repo.UpdateOrganization(ctx, org)
	return org, errors.Wrap(err, "updating organization")
}

// Join makes `p` a member of organization `id`.
// A user belongs to one organization at a time: any previous membership is removed in the same transaction.
// Joining one's current organization is a no-op.
func (svc *Service) Join(ctx context.Context, p access.Principal, id int) (JoinResult, error) {
	org, err := svc.Get(ctx, p, id)
	if err != nil {
		return JoinResult{}, err
	}

	if p.InOrganization(org.ID) {
		m, err := svc.repo.GetMembership(ctx, p.UserID)
		if err != nil {
			return JoinResult{}, errors.Wrap(err, "getting membership")
		}
		return JoinResult{Membership: m}, nil
	}
	if !access.CanJoinOrganization(p, org.Ref()) {
		return JoinResult{}, core.ErrForbidden
	}
	if err = svc.checkCanMove(ctx, p); err != nil {
		return JoinResult{}, err
	}

	m, prev, err := svc.repo.ReplaceMembership(ctx, Membership{
		OrganizationID: org.ID,
		UserID:         p.UserID,
		Role:           access.OrgRoleMember,
		JoinedAt:       NowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrMembershipChanged {
			return JoinResult{}, core.NewValidationError(ErrMembershipChanged)
		}
		return JoinResult{}, errors.Wrap(err, "replacing membership")
	}

	res := JoinResult{Membership: m}
	if prev != nil {
		res.Switched = true
		res.PreviousOrganizationID = prev.OrganizationID
	}
	svc.publishJoin(ctx, m, res.PreviousOrganizationID)
	return res, nil
}

// Leave removes the membership of `p`.
func (svc *Service) Leave(ctx context.Context, p access.Principal) error {
	if !p.HasOrganization() {
		return core.NewValidationError(ErrNoOrganization)
	}
	if err := svc.checkNotLastAdmin(ctx, p.OrganizationID, p.UserID); err != nil {
		return err
	}
	if err := svc.repo.DeleteMembership(ctx, p.UserID); err != nil {
		return errors.Wrap(err, "deleting membership")
	}
	svc.publish(ctx, core.NewEvent(core.EventOrganizationLeft, map[string]interface{}{
		"user_id":         p.UserID,
		"organization_id": p.OrganizationID,
	}))
	return nil
}

// Current returns the organization & membership of `p`.
func (svc *Service) Current(ctx context.Context, p access.Principal) (Organization, Membership, error) {
	if !p.HasOrganization() {
		return Organization{}, Membership{}, ErrMembershipNotFound
	}
	m, err := svc.repo.GetMembership(ctx, p.UserID)
	if err != nil {
		return Organization{}, Membership{}, errors.Wrap(err, "getting membership")
	}
	org, err := svc.repo.GetOrganization(ctx, m.OrganizationID)
	if err != nil {
		return Organization{}, Membership{}, errors.Wrap(err, "getting organization")
	}
	return org, m, nil
}

// MembershipOf returns the membership of user `userID`.
func (svc *Service) MembershipOf(ctx context.Context, userID int) (Membership, error) {
	m, err := svc.repo.GetMembership(ctx, userID)
	return m, errors.Wrap(err, "getting membership")
}

// OrganizationOf returns the organization ID of user `userID`, 0 when they belong to none.
func (svc *Service) OrganizationOf(ctx context.Context, userID int) (int, error) {
	m, err := svc.repo.GetMembership(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrMembershipNotFound {
			return 0, nil
		}
		return 0, errors.Wrap(err, "getting membership")
	}
	return m.OrganizationID, nil
}

func (svc *Service) Members(ctx context.Context, p access.Principal, id int, filter MemberFilter) ([]Member, error) {
	org, err := svc.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !access.CanViewOrganizationMembers(p, org.Ref()) {
		return nil, core.ErrForbidden
	}
	filter.UserRoles = core.CleanStrings(filter.UserRoles, true /* lower */)
	members, err := svc.repo.QueryMembers(ctx, org.ID, filter)
	return members, errors.Wrap(err, "querying members")
}

// Students lists the students of the organization of `p`.
func (svc *Service) Students(ctx context.Context, p access.Principal) ([]Member, error) {
	if !access.CanViewStudents(p) {
		return nil, core.ErrForbidden
	}
	if !p.HasOrganization() {
		return nil, core.NewValidationError(ErrNoOrganization)
	}
	members, err := svc.repo.QueryMembers(ctx, p.OrganizationID, MemberFilter{UserRoles: []string{user.RoleStudent}})
	return members, errors.Wrap(err, "querying students")
}

// CountMembers counts the members of organization `orgID` having user role `userRole`.
func (svc *Service) CountMembers(ctx context.Context, orgID int, userRole string) (int, error) {
	members, err := svc.repo.QueryMembers(ctx, orgID, MemberFilter{UserRoles: []string{userRole}})
	if err != nil {
		return 0, errors.Wrap(err, "querying members")
	}
	return len(members), nil
}

// SetMemberRole changes the membership role of user `userID`. Org admins only.
func (svc *Service) SetMemberRole(ctx context.Context, p access.Principal, orgID, userID int, um UpdateMember) (Membership, error) {
	org, err := svc.Get(ctx, p, orgID)
	if err != nil {
		return Membership{}, err
	}
	if !access.CanManageOrganization(p, org.Ref()) {
		return Membership{}, core.ErrForbidden
	}
	m, err := svc.repo.GetMembership(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrMembershipNotFound {
			return Membership{}, ErrMemberNotFound
		}
		return Membership{}, errors.Wrap(err, "getting membership")
	}
	if m.OrganizationID != org.ID {
		return Membership{}, ErrMemberNotFound
	}
	if m.Role == access.OrgRoleAdmin && um.Role != access.OrgRoleAdmin {
		if err = svc.checkNotLastAdmin(ctx, org.ID, userID); err != nil {
			return Membership{}, err
		}
	}
	m.Role = um.Role
	m, err = svc.repo.UpdateMembership(ctx, m)
	return m, errors.Wrap(err, "updating membership")
}

// checkCanMove refuses to take `p` out of their organization while they are its last admin.
func (svc *Service) checkCanMove(ctx context.Context, p access.Principal) error {
	if !p.HasOrganization() || p.OrgRole != access.OrgRoleAdmin {
		return nil
	}
	return svc.checkNotLastAdmin(ctx, p.OrganizationID, p.UserID)
}

func (svc *Service) checkNotLastAdmin(ctx context.Context, orgID, userID int) error {
	members, err := svc.repo.QueryMembers(ctx, orgID, MemberFilter{})
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	var isAdmin bool
	admins := 0
	for _, m := range members {
		if m.Role == access.OrgRoleAdmin {
			admins++
			if m.UserID == userID {
				isAdmin = true
			}
		}
	}
	// the last member may leave, the organization simply becomes empty
	if isAdmin && admins == 1 && len(members) > 1 {
		return core.NewValidationError(ErrLastAdmin)
	}
	return nil
}

func (svc *Service) publishJoin(ctx context.Context, m Membership, prevOrgID int) {
	payload := map[string]interface{}{
		"user_id":         m.UserID,
		"organization_id": m.OrganizationID,
		"role":            m.Role,
	}
	name := core.EventOrganizationJoined
	if prevOrgID != 0 && prevOrgID != m.OrganizationID {
		name = core.EventOrganizationSwitched
		payload["previous_organization_id"] = prevOrgID
	}
	svc.publish(ctx, core.NewEvent(name, payload))
}

func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if err := svc.publisher.Publish(ctx, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s: %v", evt.Name, err), err)
	}
}
