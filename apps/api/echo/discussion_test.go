package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/discussion"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/user"
)

func discussionPath(id int, suffix ...string) string {
	path := fmt.Sprintf("/v1/discussions/%d", id)
	for _, s := range suffix {
		path += s
	}
	return path
}

func globalPath(id int, suffix ...string) string {
	path := fmt.Sprintf("/v1/global-discussions/%d", id)
	for _, s := range suffix {
		path += s
	}
	return path
}

// tickingClock makes every discussion timestamp a minute later than the previous one.
func tickingClock(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	discussion.NowFunc = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	t.Cleanup(func() { discussion.NowFunc = time.Now })
}

func (app *testApp) startDiscussion(t *testing.T, usr user.User, title string, global bool) discussion.Discussion {
	t.Helper()
	nd := discussion.NewDiscussion{Title: title, Content: title + "?", Category: discussion.DefaultCategory}
	p := app.Principal(t, usr)

	var d discussion.Discussion
	var err error
	if global {
		d, err = app.Discussions.CreateGlobal(context.Background(), p, nd)
	} else {
		d, err = app.Discussions.Create(context.Background(), p, nd)
	}
	if err != nil {
		t.Fatalf("startDiscussion(): %v", err)
	}
	return d
}

func (app *testApp) reply(t *testing.T, usr user.User, discussionID int, content string) discussion.Reply {
	t.Helper()
	r, err := app.Discussions.Reply(context.Background(), app.Principal(t, usr), discussionID, discussion.NewReply{Content: content})
	if err != nil {
		t.Fatalf("reply(): %v", err)
	}
	return r
}

// rivalSchool creates a second organization with a teacher & a student.
func rivalSchool(t *testing.T, app *testApp) user.User {
	rival := app.createUser(t, "rival", user.RoleTeacher, true)
	visitor := app.createUser(t, "visitor", user.RoleStudent, true)
	org := app.CreateOrganization(t, rival, "Lycee", true)
	app.Join(t, visitor, org.ID)
	return visitor
}

func Test_discussionApi_create(t *testing.T) {
	app := setup(t)
	tickingClock(t)
	s := newSchool(t, app)
	token := app.getToken(t, s.student)

	tests := []httpTest{
		{
			name: "Organization required", token: app.getToken(t, s.outsider), body: []byte(`{"title": "Hi", "content": "Hello"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "organization membership required"}),
		},
		{
			name: "Missing fields", token: token, body: []byte(`{"title": "  "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"title":   "this field is required",
				"content": "this field is required",
			}),
		},
		{name: "Unknown category", token: token, body: []byte(`{"title": "Hi", "content": "Hello", "category": "gossip"}`), wantCode: http.StatusBadRequest},
		{
			name: "Discussion started", token: token,
			body:     []byte(`{"title": " Homework help ", "content": "Exercise 4?", "tags": ["Maths", " Fractions "]}`),
			wantCode: http.StatusCreated,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var d discussion.Discussion
				unmarchall(t, rec, &d)
				assert.Equal(t, "Homework help", d.Title)
				assert.Equal(t, discussion.DefaultCategory, d.Category)
				assert.Equal(t, []string{"maths", "fractions"}, d.Tags)
				assert.Equal(t, s.student.ID, d.AuthorID)
				assert.Equal(t, app.Principal(t, s.student).OrganizationID, d.OrganizationID)
				assert.Empty(t, d.AuthorOrganization)
				assert.False(t, d.IsPinned)
			},
		},
	}
	for i := range tests {
		tests[i].path = "/v1/discussions"
	}
	app.run(t, http.MethodPost, tests)
}

func Test_discussionApi_organization(t *testing.T) {
	app := setup(t)
	tickingClock(t)
	s := newSchool(t, app)
	visitor := rivalSchool(t, app)

	homework := app.startDiscussion(t, s.student, "Homework help", false)
	exams := app.startDiscussion(t, s.teacher, "Exam dates", false)
	_, err := app.Discussions.Create(context.Background(), app.Principal(t, visitor), discussion.NewDiscussion{Title: "Lycee news", Content: "Hi"})
	require.NoError(t, err)
	answer := app.reply(t, s.teacher, homework.ID, "Read chapter 2")
	thanks := app.reply(t, s.student, homework.ID, "Thanks!")

	studentToken := app.getToken(t, s.student)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{
			name: "Most active first", path: "/v1/discussions", token: studentToken,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				wantIDs(homework.ID, exams.ID)(t, rec)
				var discussions []discussion.Discussion
				unmarchall(t, rec, &discussions)
				require.NotEmpty(t, discussions)
				assert.Equal(t, 2, discussions[0].ReplyCount)
				assert.Equal(t, s.student.Name(), discussions[0].AuthorName)
			},
		},
		{name: "Filter by category", path: "/v1/discussions?category=Announcement", token: studentToken, check: wantIDs()},
		{name: "Other organization forum", path: "/v1/discussions", token: app.getToken(t, visitor), check: func(t *testing.T, rec *httptest.ResponseRecorder) {
			var discussions []discussion.Discussion
			unmarchall(t, rec, &discussions)
			require.Len(t, discussions, 1)
			assert.Equal(t, "Lycee news", discussions[0].Title)
		}},
		{
			name: "Thread", path: discussionPath(homework.ID), token: studentToken,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var thread discussion.Thread
				unmarchall(t, rec, &thread)
				assert.Equal(t, homework.ID, thread.ID)
				require.Len(t, thread.Replies, 2)
				assert.Equal(t, answer.ID, thread.Replies[0].ID)
				assert.Equal(t, thanks.ID, thread.Replies[1].ID)
				assert.Equal(t, s.teacher.Name(), thread.Replies[0].AuthorName)
			},
		},
		{name: "Public forums are readable by outsiders", path: discussionPath(homework.ID), token: app.getToken(t, visitor)},
		{
			name: "Only members reply", method: http.MethodPost, path: discussionPath(homework.ID, "/replies"), token: app.getToken(t, visitor),
			body: []byte(`{"content": "Me too"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Blank reply", method: http.MethodPost, path: discussionPath(homework.ID, "/replies"), token: studentToken,
			body: []byte(`{"content": " "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
		},
		{
			name: "Reply", method: http.MethodPost, path: discussionPath(exams.ID, "/replies"), token: studentToken,
			body: []byte(`{"content": " When? "}`), wantCode: http.StatusCreated,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var r discussion.Reply
				unmarchall(t, rec, &r)
				assert.Equal(t, exams.ID, r.DiscussionID)
				assert.Equal(t, "When?", r.Content)
				assert.Equal(t, s.student.ID, r.AuthorID)
			},
		},
		{name: "Replies bump the discussion", path: "/v1/discussions", token: studentToken, check: wantIDs(exams.ID, homework.ID)},
		{name: "Unknown discussion", path: discussionPath(99), token: studentToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "discussion not found"})},
		{
			name: "Reply of another discussion", method: http.MethodDelete, path: discussionPath(exams.ID, fmt.Sprintf("/replies/%d", answer.ID)),
			token: app.getToken(t, s.owner), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "reply not found"}),
		},
		{
			name: "Members cannot delete others' replies", method: http.MethodDelete, path: discussionPath(homework.ID, fmt.Sprintf("/replies/%d", answer.ID)),
			token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Authors delete their replies", method: http.MethodDelete, path: discussionPath(homework.ID, fmt.Sprintf("/replies/%d", thanks.ID)),
			token: studentToken, wantCode: http.StatusNoContent,
		},
		{
			name: "Organization staff moderate", method: http.MethodDelete, path: discussionPath(homework.ID, fmt.Sprintf("/replies/%d", answer.ID)),
			token: app.getToken(t, s.owner), wantCode: http.StatusNoContent,
		},
		{
			name: "Members cannot delete others' discussions", method: http.MethodDelete, path: discussionPath(exams.ID),
			token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "Authors delete their discussions", method: http.MethodDelete, path: discussionPath(exams.ID), token: app.getToken(t, s.teacher), wantCode: http.StatusNoContent},
		{
			name: "Moderated replies are gone", path: discussionPath(homework.ID), token: studentToken,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var thread discussion.Thread
				unmarchall(t, rec, &thread)
				assert.Empty(t, thread.Replies)
			},
		},
	}
	app.run(t, http.MethodGet, tests)
}

func Test_discussionApi_privateForum(t *testing.T) {
	app := setup(t)
	s := newSchool(t, app)
	visitor := rivalSchool(t, app)

	homework := app.startDiscussion(t, s.student, "Homework help", false)
	privacy := access.DiscussionsPrivate
	orgID := app.Principal(t, s.owner).OrganizationID
	_, err := app.Orgs.Update(context.Background(), app.Principal(t, s.owner), orgID, organization.UpdateOrganization{DiscussionPrivacy: &privacy})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Members read", path: discussionPath(homework.ID), token: app.getToken(t, s.student)},
		{
			name: "Hidden from outsiders", path: discussionPath(homework.ID), token: app.getToken(t, visitor),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "discussion not found"}),
		},
		{
			name: "Not a global discussion", path: globalPath(homework.ID), token: app.getToken(t, s.student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "discussion not found"}),
		},
	}
	app.run(t, http.MethodGet, tests)
}

func Test_discussionApi_global(t *testing.T) {
	app := setup(t)
	tickingClock(t)
	s := newSchool(t, app)
	visitor := rivalSchool(t, app)

	first := app.startDiscussion(t, s.student, "Best maths videos", true)
	second := app.startDiscussion(t, visitor, "Exchange program", true)
	local := app.startDiscussion(t, s.teacher, "Staff meeting", false)

	adminToken := app.getToken(t, s.admin)
	studentToken := app.getToken(t, s.student)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	pin := []byte(`{"pinned": true}`)

	tests := []httpTest{
		{
			name: "Signed with the organization", method: http.MethodPost, path: "/v1/global-discussions", token: studentToken,
			body: []byte(`{"title": "Study group", "content": "Anyone?", "category": "Help"}`), wantCode: http.StatusCreated,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var d discussion.Discussion
				unmarchall(t, rec, &d)
				assert.Equal(t, "Academy", d.AuthorOrganization)
				assert.Equal(t, "help", d.Category)
				assert.Zero(t, d.OrganizationID)
			},
		},
		{
			name: "Organization required", method: http.MethodPost, path: "/v1/global-discussions", token: app.getToken(t, s.outsider),
			body: []byte(`{"title": "Hi", "content": "Hello"}`), wantCode: http.StatusForbidden,
		},
		{name: "Newest first", path: "/v1/global-discussions?category=general", token: app.getToken(t, visitor), check: wantIDs(second.ID, first.ID)},
		{name: "Limit", path: "/v1/global-discussions?limit=1&category=general", token: studentToken, check: wantIDs(second.ID)},
		{name: "Thread", path: globalPath(first.ID), token: app.getToken(t, visitor)},
		{name: "Only admins pin", method: http.MethodPut, path: globalPath(first.ID, "/pin"), token: studentToken, body: pin, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "Only global discussions are pinned", method: http.MethodPut, path: globalPath(local.ID, "/pin"), token: adminToken, body: pin,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "only global discussions can be pinned"}),
		},
		{
			name: "Pinned", method: http.MethodPut, path: globalPath(first.ID, "/pin"), token: adminToken, body: pin,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var d discussion.Discussion
				unmarchall(t, rec, &d)
				assert.True(t, d.IsPinned)
			},
		},
		{name: "Pinned first", path: "/v1/global-discussions?category=general", token: studentToken, check: wantIDs(first.ID, second.ID)},
		{
			name: "Reply signed with the organization", method: http.MethodPost, path: globalPath(first.ID, "/replies"), token: app.getToken(t, visitor),
			body: []byte(`{"content": "Khan Academy"}`), wantCode: http.StatusCreated,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var r discussion.Reply
				unmarchall(t, rec, &r)
				assert.Equal(t, "Lycee", r.AuthorOrganization)
			},
		},
		{
			name: "Organization discussions are not global", method: http.MethodPost, path: globalPath(local.ID, "/replies"), token: studentToken,
			body: []byte(`{"content": "Hi"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "discussion not found"}),
		},
		{name: "Members cannot delete others' discussions", method: http.MethodDelete, path: globalPath(second.ID), token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "Admins moderate", method: http.MethodDelete, path: globalPath(second.ID), token: adminToken, wantCode: http.StatusNoContent},
		{name: "Deleted", path: globalPath(second.ID), token: adminToken, wantCode: http.StatusNotFound},
	}
	app.run(t, http.MethodGet, tests)
}
