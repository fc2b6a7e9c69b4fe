// Package access holds the access-control rules of the application.
//
// Every function here is a pure decision over a Principal and references to the records involved:
// no I/O, no side effects. Services load the records, ask this package, then act.
// Inactive principals are denied everything.
package access

import "github.com/trezcool/darasa/core/user"

// Organization membership roles
const (
	OrgRoleAdmin     = "admin"
	OrgRoleModerator = "moderator"
	OrgRoleMember    = "member"
)

// Organization discussion privacy
const (
	DiscussionsPublic  = "public"
	DiscussionsPrivate = "private"
)

// Principal is the acting user as seen by the access rules.
type Principal struct {
	UserID         int    `json:"user_id"`
	Role           string `json:"role"`
	IsActive       bool   `json:"is_active"`
	OrganizationID int    `json:"organization_id,omitempty"` // 0: no organization
	OrgRole        string `json:"org_role,omitempty"`
}

// IsAdmin reports whether p is an active admin.
func (p Principal) IsAdmin() bool { return p.IsActive && p.Role == user.RoleAdmin }

// IsTeacher reports whether p is an active teacher.
func (p Principal) IsTeacher() bool { return p.IsActive && p.Role == user.RoleTeacher }

// IsStudent reports whether p is an active student.
func (p Principal) IsStudent() bool { return p.IsActive && p.Role == user.RoleStudent }

// HasOrganization reports whether p is an active member of any organization.
func (p Principal) HasOrganization() bool {
	return p.IsActive && p.OrganizationID != 0
}

// InOrganization reports whether p is an active member of organization orgID.
func (p Principal) InOrganization(orgID int) bool {
	return p.HasOrganization() && p.OrganizationID == orgID
}

func (p Principal) user() user.User {
	return user.User{ID: p.UserID, Role: p.Role, IsActive: p.IsActive}
}

// IsOrgAdmin reports whether p is an admin member of organization orgID.
func (p Principal) IsOrgAdmin(orgID int) bool {
	return p.InOrganization(orgID) && p.OrgRole == OrgRoleAdmin
}

// IsOrgStaff reports whether p is an admin or a moderator member of organization orgID.
func (p Principal) IsOrgStaff(orgID int) bool {
	return p.InOrganization(orgID) && (p.OrgRole == OrgRoleAdmin || p.OrgRole == OrgRoleModerator)
}

// administers reports whether p has authority over records of organization orgID:
// a system admin belonging to it, or one of its org admins.
func (p Principal) administers(orgID int) bool {
	if orgID == 0 {
		return false
	}
	return (p.IsAdmin() && p.InOrganization(orgID)) || p.IsOrgAdmin(orgID)
}

type (
	ClassRef struct {
		ID             int
		TeacherID      int
		OrganizationID int
	}

	OrganizationRef struct {
		ID                int
		IsPublic          bool
		DiscussionPrivacy string
	}

	ResourceRef struct {
		UploadedBy     int
		ClassID        int
		OrganizationID int
		IsPublic       bool
	}
)

// ScopeKind tells which classes a principal may list.
type ScopeKind int

const (
	ScopeNone         ScopeKind = iota // nothing
	ScopeTeacher                       // classes taught by UserID
	ScopeStudent                       // classes UserID is enrolled in
	ScopeOrganization                  // classes of OrganizationID
)

// ClassScope is the filter applied to class listings.
type ClassScope struct {
	Kind           ScopeKind
	UserID         int
	OrganizationID int
}

// ClassScopeFor returns the classes p may list:
// teachers their own classes, students the classes they are enrolled in, admins the classes of their organization.
func ClassScopeFor(p Principal) ClassScope {
	switch {
	case p.IsTeacher():
		return ClassScope{Kind: ScopeTeacher, UserID: p.UserID}
	case p.IsStudent():
		return ClassScope{Kind: ScopeStudent, UserID: p.UserID}
	case p.IsAdmin() && p.HasOrganization():
		return ClassScope{Kind: ScopeOrganization, OrganizationID: p.OrganizationID}
	}
	return ClassScope{Kind: ScopeNone}
}

// Classes

func CanCreateClass(p Principal) bool {
	return p.IsTeacher() && p.HasOrganization()
}

// CanViewClass: the owning teacher, an enrolled student, or an admin of the class's organization.
func CanViewClass(p Principal, class ClassRef, enrolled bool) bool {
	switch {
	case !p.IsActive:
		return false
	case p.IsTeacher():
		return class.TeacherID == p.UserID
	case p.IsStudent():
		return enrolled
	case p.IsAdmin():
		return class.OrganizationID != 0 && p.InOrganization(class.OrganizationID)
	}
	return false
}

// CanManageClass covers enrollments, deletion, schedule events and class resources.
func CanManageClass(p Principal, class ClassRef) bool {
	if p.IsTeacher() && class.TeacherID == p.UserID {
		return true
	}
	return p.IsAdmin() && class.OrganizationID != 0 && p.InOrganization(class.OrganizationID)
}

func CanViewStudents(p Principal) bool {
	return p.IsAdmin() || p.IsTeacher()
}

// Organizations

func CanCreateOrganization(p Principal) bool {
	return p.IsTeacher()
}

func CanViewOrganization(p Principal, org OrganizationRef) bool {
	return p.IsActive && (org.IsPublic || p.InOrganization(org.ID))
}

func CanJoinOrganization(p Principal, org OrganizationRef) bool {
	return p.IsActive && org.IsPublic
}

func CanManageOrganization(p Principal, org OrganizationRef) bool {
	return p.IsOrgAdmin(org.ID)
}

func CanViewOrganizationMembers(p Principal, org OrganizationRef) bool {
	return CanViewOrganization(p, org)
}

// Resources

// CanViewResource: uploaders always see their resources.
// Class resources follow the class visibility (classVisible).
// Organization resources need membership, and private ones are limited to the organization's administrators.
func CanViewResource(p Principal, res ResourceRef, classVisible bool) bool {
	switch {
	case !p.IsActive:
		return false
	case res.UploadedBy == p.UserID:
		return true
	case res.ClassID != 0:
		return classVisible
	case res.OrganizationID != 0:
		if !p.InOrganization(res.OrganizationID) {
			return false
		}
		return res.IsPublic || p.administers(res.OrganizationID)
	}
	return res.IsPublic
}

// CanModifyOwned: the owner, or an administrator of the organization the record belongs to.
func CanModifyOwned(p Principal, ownerID, orgID int) bool {
	if !p.IsActive {
		return false
	}
	return ownerID == p.UserID || p.administers(orgID)
}

// Discussions

// CanReadDiscussions: org is nil for the global forum.
func CanReadDiscussions(p Principal, org *OrganizationRef) bool {
	if !p.IsActive {
		return false
	}
	if org == nil {
		return true
	}
	return p.InOrganization(org.ID) || org.DiscussionPrivacy == DiscussionsPublic
}

// CanPostDiscussion: orgID is 0 for the global forum, where any organization member may post.
func CanPostDiscussion(p Principal, orgID int) bool {
	if orgID == 0 {
		return p.HasOrganization()
	}
	return p.InOrganization(orgID)
}

// CanModerateDiscussion covers deletion of discussions and replies.
func CanModerateDiscussion(p Principal, authorID, orgID int) bool {
	if !p.IsActive {
		return false
	}
	if authorID == p.UserID {
		return true
	}
	if orgID == 0 {
		return p.IsAdmin()
	}
	return p.IsOrgStaff(orgID) || (p.IsAdmin() && p.InOrganization(orgID))
}

func CanPinDiscussion(p Principal) bool {
	return p.IsAdmin()
}

// Schedule

func CanDeleteEvent(p Principal, createdBy int, class ClassRef) bool {
	return (p.IsActive && createdBy == p.UserID) || CanManageClass(p, class)
}

// Users

func CanManageUsers(p Principal) bool {
	return user.CanManageUsers(p.user())
}

// CanAssignRole: nobody can grant a role above their own.
func CanAssignRole(p Principal, role string) bool {
	return user.CanAssignRole(p.user(), role)
}
