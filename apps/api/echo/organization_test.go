package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/user"
)

func orgPath(id int, suffix ...string) string {
	path := fmt.Sprintf("/v1/organizations/%d", id)
	for _, s := range suffix {
		path += s
	}
	return path
}

func Test_organizationApi_create(t *testing.T) {
	app := setup(t)
	teacher := app.createUser(t, "teacher", user.RoleTeacher, true)
	student := app.createUser(t, "hero", user.RoleStudent, true)

	teacherToken := app.getToken(t, teacher)

	tests := []httpTest{
		{name: "Auth required", body: []byte(`{"name": "Academy"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Students cannot create organizations", token: app.getToken(t, student), body: []byte(`{"name": "Academy"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Name required", token: teacherToken, body: []byte(`{"name": ""}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{name: "Invalid discussion privacy", token: teacherToken, body: []byte(`{"name": "Academy", "discussion_privacy": "secret"}`), wantCode: http.StatusBadRequest},
		{
			name: "Organization created", token: teacherToken, body: []byte(`{"name": " Kin Academy ", "is_public": false}`), wantCode: http.StatusCreated,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var org organization.Organization
				unmarchall(t, rec, &org)
				assert.Equal(t, "Kin Academy", org.Name)
				assert.False(t, org.IsPublic)
				assert.Equal(t, access.DiscussionsPublic, org.DiscussionPrivacy)
				assert.Equal(t, teacher.ID, org.CreatedBy)

				p := app.Principal(t, teacher)
				assert.Equal(t, org.ID, p.OrganizationID)
				assert.Equal(t, access.OrgRoleAdmin, p.OrgRole)
				assert.Len(t, app.Publisher.Events(core.EventOrganizationJoined), 1)
			},
		},
	}
	for i := range tests {
		tests[i].path = "/v1/organizations"
	}
	app.run(t, http.MethodPost, tests)
}

func Test_organizationApi_query(t *testing.T) {
	app := setup(t)
	owner1 := app.createUser(t, "owner1", user.RoleTeacher, true)
	owner2 := app.createUser(t, "owner2", user.RoleTeacher, true)
	owner3 := app.createUser(t, "owner3", user.RoleTeacher, true)
	student := app.createUser(t, "hero", user.RoleStudent, true)

	zeta := app.CreateOrganization(t, owner1, "Zeta School", true)
	alpha := app.CreateOrganization(t, owner2, "Alpha School", true)
	hidden := app.CreateOrganization(t, owner3, "Hidden School", false)

	notFound := marchallObj(t, httpErr{Error: "organization not found"})

	tests := []httpTest{
		{name: "Public organizations", path: "/v1/organizations", token: app.getToken(t, student), wantData: marchallList(t, alpha, zeta)},
		{name: "Own private organization", path: "/v1/organizations", token: app.getToken(t, owner3), wantData: marchallList(t, alpha, hidden, zeta)},
		{name: "search", path: "/v1/organizations?search=ZET", token: app.getToken(t, student), wantData: marchallList(t, zeta)},
		{name: "Public detail", path: orgPath(zeta.ID), token: app.getToken(t, student), wantData: marchallObj(t, zeta)},
		{name: "Private detail hidden", path: orgPath(hidden.ID), token: app.getToken(t, student), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "Private detail for members", path: orgPath(hidden.ID), token: app.getToken(t, owner3), wantData: marchallObj(t, hidden)},
		{name: "Unknown organization", path: orgPath(99), token: app.getToken(t, student), wantCode: http.StatusNotFound, wantData: notFound},
	}
	app.run(t, http.MethodGet, tests)
}

func Test_organizationApi_join(t *testing.T) {
	app := setup(t)
	owner1 := app.createUser(t, "owner1", user.RoleTeacher, true)
	owner2 := app.createUser(t, "owner2", user.RoleTeacher, true)
	owner3 := app.createUser(t, "owner3", user.RoleTeacher, true)
	student := app.createUser(t, "hero", user.RoleStudent, true)

	orgA := app.CreateOrganization(t, owner1, "A", true)
	orgB := app.CreateOrganization(t, owner2, "B", true)
	private := app.CreateOrganization(t, owner3, "C", false)
	app.Publisher.Reset()

	token := app.getToken(t, student)
	joined := func(orgID int, switched bool, prevOrgID int) func(t *testing.T, rec *httptest.ResponseRecorder) {
		return func(t *testing.T, rec *httptest.ResponseRecorder) {
			var res organization.JoinResult
			unmarchall(t, rec, &res)
			assert.Equal(t, orgID, res.Membership.OrganizationID)
			assert.Equal(t, student.ID, res.Membership.UserID)
			assert.Equal(t, access.OrgRoleMember, res.Membership.Role)
			assert.Equal(t, switched, res.Switched)
			assert.Equal(t, prevOrgID, res.PreviousOrganizationID)

			p := app.Principal(t, student)
			assert.Equal(t, orgID, p.OrganizationID)
		}
	}

	tests := []httpTest{
		{name: "Auth required", path: orgPath(orgA.ID, "/join"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Join A", path: orgPath(orgA.ID, "/join"), token: token, check: joined(orgA.ID, false, 0)},
		{name: "Switch to B", path: orgPath(orgB.ID, "/join"), token: token, check: joined(orgB.ID, true, orgA.ID)},
		{name: "Join B again", path: orgPath(orgB.ID, "/join"), token: token, check: joined(orgB.ID, false, 0)},
		{
			name: "Private organizations cannot be joined", path: orgPath(private.ID, "/join"), token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "organization not found"}),
		},
	}
	app.run(t, http.MethodPost, tests)

	assert.Len(t, app.Publisher.Events(core.EventOrganizationJoined), 1)
	switched := app.Publisher.Events(core.EventOrganizationSwitched)
	require.Len(t, switched, 1)

	// a single membership remains
	members, err := app.Repos.Organizations.QueryMembers(context.Background(), orgA.ID, organization.MemberFilter{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, owner1.ID, members[0].UserID)

	tests = []httpTest{
		{
			name: "Current organization", path: "/v1/organizations/current", token: token,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp CurrentOrganizationResponse
				unmarchall(t, rec, &resp)
				assert.Equal(t, orgB.ID, resp.Organization.ID)
				assert.Equal(t, student.ID, resp.Membership.UserID)
			},
		},
		{
			name: "Members", path: orgPath(orgB.ID, "/members"), token: token,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var members []organization.Member
				unmarchall(t, rec, &members)
				require.Len(t, members, 2)
				assert.Equal(t, owner2.ID, members[0].UserID)
				assert.Equal(t, student.ID, members[1].UserID)
				assert.Equal(t, user.RoleStudent, members[1].UserRole)
			},
		},
	}
	app.run(t, http.MethodGet, tests)
}

func Test_organizationApi_leave(t *testing.T) {
	app := setup(t)
	owner := app.createUser(t, "owner", user.RoleTeacher, true)
	student := app.createUser(t, "hero", user.RoleStudent, true)
	loner := app.createUser(t, "loner", user.RoleStudent, true)
	rival := app.createUser(t, "rival", user.RoleTeacher, true)

	org := app.CreateOrganization(t, owner, "Academy", true)
	lycee := app.CreateOrganization(t, rival, "Lycee", true)
	app.Join(t, student, org.ID)

	studentToken := app.getToken(t, student)
	membershipNotFound := marchallObj(t, httpErr{Error: "membership not found"})
	lastAdmin := marchallObj(t, httpErr{Error: "an organization must keep at least one admin"})

	tests := []httpTest{
		{
			name: "No organization", path: "/v1/organizations/leave", token: app.getToken(t, loner), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "you are not a member of any organization"}),
		},
		{
			name: "Last admin cannot leave", path: "/v1/organizations/leave", token: app.getToken(t, owner), wantCode: http.StatusBadRequest,
			wantData: lastAdmin,
		},
		{
			name: "Last admin cannot switch", path: orgPath(lycee.ID, "/join"), token: app.getToken(t, owner), wantCode: http.StatusBadRequest,
			wantData: lastAdmin,
		},
		{
			name: "Last admin cannot found another organization", path: "/v1/organizations", token: app.getToken(t, owner),
			body: []byte(`{"name": "Annex"}`), wantCode: http.StatusBadRequest, wantData: lastAdmin,
		},
		{name: "Member leaves", path: "/v1/organizations/leave", token: studentToken, wantCode: http.StatusNoContent},
		{
			name: "No current organization", method: http.MethodGet, path: "/v1/organizations/current", token: studentToken,
			wantCode: http.StatusNotFound, wantData: membershipNotFound,
		},
		{name: "Last member leaves", path: "/v1/organizations/leave", token: app.getToken(t, owner), wantCode: http.StatusNoContent},
	}
	app.run(t, http.MethodPost, tests)
	assert.Len(t, app.Publisher.Events(core.EventOrganizationLeft), 2)
}

func Test_organizationApi_manage(t *testing.T) {
	app := setup(t)
	owner := app.createUser(t, "owner", user.RoleTeacher, true)
	student := app.createUser(t, "hero", user.RoleStudent, true)

	org := app.CreateOrganization(t, owner, "Academy", true)
	app.Join(t, student, org.ID)

	ownerToken := app.getToken(t, owner)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{
			name: "Members cannot update", path: orgPath(org.ID), token: app.getToken(t, student),
			body: []byte(`{"name": "Mine"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "Invalid website", path: orgPath(org.ID), token: ownerToken, body: []byte(`{"website": "lol"}`), wantCode: http.StatusBadRequest},
		{
			name: "Organization updated", path: orgPath(org.ID), token: ownerToken,
			body: []byte(`{"name": "Academy 2", "discussion_privacy": "private"}`),
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var got organization.Organization
				unmarchall(t, rec, &got)
				assert.Equal(t, "Academy 2", got.Name)
				assert.Equal(t, access.DiscussionsPrivate, got.DiscussionPrivacy)
				assert.True(t, got.IsPublic)
			},
		},
		{
			name: "Invalid member role", path: orgPath(org.ID, fmt.Sprintf("/members/%d", student.ID)), token: ownerToken,
			body: []byte(`{"role": "king"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Members cannot promote", path: orgPath(org.ID, fmt.Sprintf("/members/%d", student.ID)), token: app.getToken(t, student),
			body: []byte(`{"role": "admin"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Member promoted", path: orgPath(org.ID, fmt.Sprintf("/members/%d", student.ID)), token: ownerToken,
			body: []byte(`{"role": "moderator"}`),
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var m organization.Membership
				unmarchall(t, rec, &m)
				assert.Equal(t, access.OrgRoleModerator, m.Role)
			},
		},
		{
			name: "Last admin cannot step down", path: orgPath(org.ID, fmt.Sprintf("/members/%d", owner.ID)), token: ownerToken,
			body: []byte(`{"role": "member"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "an organization must keep at least one admin"}),
		},
		{
			name: "Unknown member", path: orgPath(org.ID, "/members/99"), token: ownerToken,
			body: []byte(`{"role": "member"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "member not found"}),
		},
	}
	app.run(t, http.MethodPut, tests)
}

func Test_studentApi_query(t *testing.T) {
	app := setup(t)
	owner := app.createUser(t, "owner", user.RoleTeacher, true)
	student := app.createUser(t, "hero", user.RoleStudent, true)
	outsider := app.createUser(t, "outsider", user.RoleStudent, true)

	org := app.CreateOrganization(t, owner, "Academy", true)
	app.Join(t, student, org.ID)

	tests := []httpTest{
		{
			name: "Organization required", token: app.getToken(t, outsider), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "organization membership required"}),
		},
		{
			name: "Students cannot list students", token: app.getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Teachers list students", token: app.getToken(t, owner),
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var members []organization.Member
				unmarchall(t, rec, &members)
				require.Len(t, members, 1)
				assert.Equal(t, student.ID, members[0].UserID)
			},
		},
	}
	for i := range tests {
		tests[i].path = "/v1/students"
	}
	app.run(t, http.MethodGet, tests)
}
