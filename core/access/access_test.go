package access_test

import (
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
)

const (
	orgA = 1
	orgB = 2
)

var (
	teacher      = access.Principal{UserID: 10, Role: user.RoleTeacher, IsActive: true, OrganizationID: orgA, OrgRole: access.OrgRoleMember}
	otherTeacher = access.Principal{UserID: 11, Role: user.RoleTeacher, IsActive: true, OrganizationID: orgA, OrgRole: access.OrgRoleMember}
	loneTeacher  = access.Principal{UserID: 12, Role: user.RoleTeacher, IsActive: true}
	student      = access.Principal{UserID: 20, Role: user.RoleStudent, IsActive: true, OrganizationID: orgA, OrgRole: access.OrgRoleMember}
	admin        = access.Principal{UserID: 30, Role: user.RoleAdmin, IsActive: true, OrganizationID: orgA, OrgRole: access.OrgRoleMember}
	foreignAdmin = access.Principal{UserID: 31, Role: user.RoleAdmin, IsActive: true, OrganizationID: orgB, OrgRole: access.OrgRoleMember}
	loneAdmin    = access.Principal{UserID: 32, Role: user.RoleAdmin, IsActive: true}
	orgAdmin     = access.Principal{UserID: 13, Role: user.RoleTeacher, IsActive: true, OrganizationID: orgA, OrgRole: access.OrgRoleAdmin}
	moderator    = access.Principal{UserID: 14, Role: user.RoleTeacher, IsActive: true, OrganizationID: orgA, OrgRole: access.OrgRoleModerator}
	inactive     = access.Principal{UserID: 40, Role: user.RoleAdmin, IsActive: false, OrganizationID: orgA, OrgRole: access.OrgRoleAdmin}

	class = access.ClassRef{ID: 100, TeacherID: teacher.UserID, OrganizationID: orgA}
)

var _ = Describe("Principal", func() {
	It("only reports roles and memberships of active principals", func() {
		Expect(admin.IsAdmin()).To(BeTrue())
		Expect(teacher.IsTeacher()).To(BeTrue())
		Expect(student.IsStudent()).To(BeTrue())
		Expect(inactive.IsAdmin()).To(BeFalse())
		Expect(inactive.HasOrganization()).To(BeFalse())
		Expect(inactive.InOrganization(orgA)).To(BeFalse())
	})

	It("knows which organization it belongs to", func() {
		Expect(teacher.HasOrganization()).To(BeTrue())
		Expect(teacher.InOrganization(orgA)).To(BeTrue())
		Expect(teacher.InOrganization(orgB)).To(BeFalse())
		Expect(loneTeacher.HasOrganization()).To(BeFalse())
	})
})

var _ = Describe("ClassScopeFor", func() {
	table.DescribeTable("scopes class listings by role",
		func(p access.Principal, want access.ClassScope) {
			Expect(access.ClassScopeFor(p)).To(Equal(want))
		},
		table.Entry("teacher: own classes", teacher, access.ClassScope{Kind: access.ScopeTeacher, UserID: teacher.UserID}),
		table.Entry("teacher without organization: own classes", loneTeacher, access.ClassScope{Kind: access.ScopeTeacher, UserID: loneTeacher.UserID}),
		table.Entry("student: enrolled classes", student, access.ClassScope{Kind: access.ScopeStudent, UserID: student.UserID}),
		table.Entry("admin: organization classes", admin, access.ClassScope{Kind: access.ScopeOrganization, OrganizationID: orgA}),
		table.Entry("admin without organization: nothing", loneAdmin, access.ClassScope{Kind: access.ScopeNone}),
		table.Entry("inactive: nothing", inactive, access.ClassScope{Kind: access.ScopeNone}),
	)
})

var _ = Describe("Classes", func() {
	It("lets only teachers with an organization create classes", func() {
		Expect(access.CanCreateClass(teacher)).To(BeTrue())
		Expect(access.CanCreateClass(loneTeacher)).To(BeFalse())
		Expect(access.CanCreateClass(student)).To(BeFalse())
		Expect(access.CanCreateClass(admin)).To(BeFalse())
	})

	table.DescribeTable("viewing a class",
		func(p access.Principal, enrolled, want bool) {
			Expect(access.CanViewClass(p, class, enrolled)).To(Equal(want))
		},
		table.Entry("owning teacher", teacher, false, true),
		table.Entry("other teacher", otherTeacher, false, false),
		table.Entry("enrolled student", student, true, true),
		table.Entry("not enrolled student", student, false, false),
		table.Entry("admin of the organization", admin, false, true),
		table.Entry("admin of another organization", foreignAdmin, false, false),
		table.Entry("inactive", inactive, true, false),
	)

	table.DescribeTable("managing a class",
		func(p access.Principal, want bool) {
			Expect(access.CanManageClass(p, class)).To(Equal(want))
		},
		table.Entry("owning teacher", teacher, true),
		table.Entry("other teacher", otherTeacher, false),
		table.Entry("org admin teacher", orgAdmin, false),
		table.Entry("student", student, false),
		table.Entry("admin of the organization", admin, true),
		table.Entry("admin of another organization", foreignAdmin, false),
		table.Entry("inactive", inactive, false),
	)

	It("does not let admins manage classes without organization", func() {
		Expect(access.CanManageClass(admin, access.ClassRef{ID: 1, TeacherID: 99})).To(BeFalse())
	})

	It("lets admins and teachers list students", func() {
		Expect(access.CanViewStudents(admin)).To(BeTrue())
		Expect(access.CanViewStudents(teacher)).To(BeTrue())
		Expect(access.CanViewStudents(student)).To(BeFalse())
		Expect(access.CanViewStudents(inactive)).To(BeFalse())
	})
})

var _ = Describe("Organizations", func() {
	public := access.OrganizationRef{ID: orgA, IsPublic: true, DiscussionPrivacy: access.DiscussionsPublic}
	private := access.OrganizationRef{ID: orgB, IsPublic: false, DiscussionPrivacy: access.DiscussionsPrivate}

	It("lets only teachers create organizations", func() {
		Expect(access.CanCreateOrganization(teacher)).To(BeTrue())
		Expect(access.CanCreateOrganization(loneTeacher)).To(BeTrue())
		Expect(access.CanCreateOrganization(student)).To(BeFalse())
		Expect(access.CanCreateOrganization(admin)).To(BeFalse())
	})

	It("hides private organizations from non members", func() {
		Expect(access.CanViewOrganization(student, public)).To(BeTrue())
		Expect(access.CanViewOrganization(student, private)).To(BeFalse())
		Expect(access.CanViewOrganization(foreignAdmin, private)).To(BeTrue())
		Expect(access.CanJoinOrganization(student, private)).To(BeFalse())
		Expect(access.CanJoinOrganization(loneTeacher, public)).To(BeTrue())
	})

	It("lets only org admins manage their organization", func() {
		Expect(access.CanManageOrganization(orgAdmin, public)).To(BeTrue())
		Expect(access.CanManageOrganization(moderator, public)).To(BeFalse())
		Expect(access.CanManageOrganization(admin, public)).To(BeFalse())
		Expect(access.CanManageOrganization(orgAdmin, private)).To(BeFalse())
	})
})

var _ = Describe("Resources", func() {
	table.DescribeTable("viewing a resource",
		func(p access.Principal, res access.ResourceRef, classVisible, want bool) {
			Expect(access.CanViewResource(p, res, classVisible)).To(Equal(want))
		},
		table.Entry("uploader", student, access.ResourceRef{UploadedBy: student.UserID, OrganizationID: orgB}, false, true),
		table.Entry("class resource, class visible", student, access.ResourceRef{UploadedBy: 1, ClassID: 100, OrganizationID: orgA, IsPublic: true}, true, true),
		table.Entry("class resource, class hidden", student, access.ResourceRef{UploadedBy: 1, ClassID: 100, OrganizationID: orgA, IsPublic: true}, false, false),
		table.Entry("public org resource, member", student, access.ResourceRef{UploadedBy: 1, OrganizationID: orgA, IsPublic: true}, false, true),
		table.Entry("public org resource, non member", foreignAdmin, access.ResourceRef{UploadedBy: 1, OrganizationID: orgA, IsPublic: true}, false, false),
		table.Entry("private org resource, member", student, access.ResourceRef{UploadedBy: 1, OrganizationID: orgA}, false, false),
		table.Entry("private org resource, admin", admin, access.ResourceRef{UploadedBy: 1, OrganizationID: orgA}, false, true),
		table.Entry("private org resource, org admin", orgAdmin, access.ResourceRef{UploadedBy: 1, OrganizationID: orgA}, false, true),
		table.Entry("inactive uploader", inactive, access.ResourceRef{UploadedBy: inactive.UserID, OrganizationID: orgA}, true, false),
	)

	It("lets owners and organization administrators modify records", func() {
		Expect(access.CanModifyOwned(teacher, teacher.UserID, orgA)).To(BeTrue())
		Expect(access.CanModifyOwned(otherTeacher, teacher.UserID, orgA)).To(BeFalse())
		Expect(access.CanModifyOwned(admin, teacher.UserID, orgA)).To(BeTrue())
		Expect(access.CanModifyOwned(orgAdmin, teacher.UserID, orgA)).To(BeTrue())
		Expect(access.CanModifyOwned(moderator, teacher.UserID, orgA)).To(BeFalse())
		Expect(access.CanModifyOwned(foreignAdmin, teacher.UserID, orgA)).To(BeFalse())
		Expect(access.CanModifyOwned(admin, teacher.UserID, 0)).To(BeFalse())
	})
})

var _ = Describe("Discussions", func() {
	publicForum := &access.OrganizationRef{ID: orgA, IsPublic: true, DiscussionPrivacy: access.DiscussionsPublic}
	privateForum := &access.OrganizationRef{ID: orgB, IsPublic: true, DiscussionPrivacy: access.DiscussionsPrivate}

	It("applies the organization discussion privacy to readers", func() {
		Expect(access.CanReadDiscussions(student, nil)).To(BeTrue())
		Expect(access.CanReadDiscussions(loneTeacher, publicForum)).To(BeTrue())
		Expect(access.CanReadDiscussions(student, privateForum)).To(BeFalse())
		Expect(access.CanReadDiscussions(foreignAdmin, privateForum)).To(BeTrue())
		Expect(access.CanReadDiscussions(inactive, nil)).To(BeFalse())
	})

	It("lets only members post", func() {
		Expect(access.CanPostDiscussion(student, orgA)).To(BeTrue())
		Expect(access.CanPostDiscussion(student, orgB)).To(BeFalse())
		Expect(access.CanPostDiscussion(student, 0)).To(BeTrue())
		Expect(access.CanPostDiscussion(loneTeacher, 0)).To(BeFalse())
	})

	table.DescribeTable("moderating a discussion",
		func(p access.Principal, authorID, orgID int, want bool) {
			Expect(access.CanModerateDiscussion(p, authorID, orgID)).To(Equal(want))
		},
		table.Entry("author", student, student.UserID, orgA, true),
		table.Entry("org moderator", moderator, student.UserID, orgA, true),
		table.Entry("org admin", orgAdmin, student.UserID, orgA, true),
		table.Entry("admin member", admin, student.UserID, orgA, true),
		table.Entry("foreign admin", foreignAdmin, student.UserID, orgA, false),
		table.Entry("plain member", teacher, student.UserID, orgA, false),
		table.Entry("global forum, admin", foreignAdmin, student.UserID, 0, true),
		table.Entry("global forum, moderator", moderator, student.UserID, 0, false),
	)

	It("lets only admins pin discussions", func() {
		Expect(access.CanPinDiscussion(admin)).To(BeTrue())
		Expect(access.CanPinDiscussion(orgAdmin)).To(BeFalse())
	})
})

var _ = Describe("Schedule", func() {
	It("lets creators and class managers delete events", func() {
		Expect(access.CanDeleteEvent(otherTeacher, otherTeacher.UserID, class)).To(BeTrue())
		Expect(access.CanDeleteEvent(teacher, otherTeacher.UserID, class)).To(BeTrue())
		Expect(access.CanDeleteEvent(student, otherTeacher.UserID, class)).To(BeFalse())
	})
})

var _ = Describe("Users", func() {
	It("never lets a role be granted above the actor's own", func() {
		Expect(access.CanAssignRole(admin, user.RoleAdmin)).To(BeTrue())
		Expect(access.CanAssignRole(admin, user.RoleStudent)).To(BeTrue())
		Expect(access.CanAssignRole(admin, "owner")).To(BeFalse())
		Expect(access.CanAssignRole(teacher, user.RoleStudent)).To(BeFalse())
		Expect(access.CanAssignRole(inactive, user.RoleStudent)).To(BeFalse())
	})
})
