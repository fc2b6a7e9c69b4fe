package sqlxrepos

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/discussion"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/schedule"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/database"
)

// prepareDB connects to DARASA_TEST_DATABASE_URL, migrates it and empties every table.
func prepareDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("DARASA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DARASA_TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, "up"))
	_, err = db.Exec(`TRUNCATE "user", organization, class, resource, discussion RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM subject WHERE is_custom`)
	require.NoError(t, err)
	return db
}

func createUser(t *testing.T, repo *userRepository, username, role string) user.User {
	now := time.Now().UTC()
	usr, err := repo.CreateUser(context.Background(), user.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    username,
		Role:         role,
		IsActive:     true,
		PasswordHash: []byte("hash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return usr
}

func TestUserRepository_unique(t *testing.T) {
	db := prepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	usr := createUser(t, repo, "jane", user.RoleTeacher)
	assert.NotZero(t, usr.ID)

	assert.Equal(t, user.ErrUsernameExists, repo.CheckUniqueness(ctx, "jane", "other@example.com", 0))
	assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "john", "jane@example.com", 0))
	assert.NoError(t, repo.CheckUniqueness(ctx, "jane", "jane@example.com", usr.ID))

	got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "jane", got.Username)

	_, err = repo.GetUser(ctx, user.GetFilter{ID: usr.ID + 100})
	assert.True(t, core.IsNotFound(err))
}

func TestOrganizationRepository_replaceMembership(t *testing.T) {
	db := prepareDB(t)
	users := NewUserRepository(db)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	owner := createUser(t, users, "owner", user.RoleAdmin)
	member := createUser(t, users, "member", user.RoleStudent)

	org1, _, err := repo.CreateOrganization(ctx,
		organization.Organization{Name: "One", IsPublic: true, DiscussionPrivacy: "public", CreatedBy: owner.ID, CreatedAt: now, UpdatedAt: now},
		organization.Membership{UserID: owner.ID, Role: access.OrgRoleAdmin, JoinedAt: now},
	)
	require.NoError(t, err)
	org2, _, err := repo.CreateOrganization(ctx,
		organization.Organization{Name: "Two", IsPublic: true, DiscussionPrivacy: "public", CreatedAt: now, UpdatedAt: now},
		organization.Membership{UserID: createUser(t, users, "owner2", user.RoleAdmin).ID, Role: access.OrgRoleAdmin, JoinedAt: now},
	)
	require.NoError(t, err)

	m, prev, err := repo.ReplaceMembership(ctx, organization.Membership{OrganizationID: org1.ID, UserID: member.ID, Role: access.OrgRoleMember, JoinedAt: now})
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.Equal(t, org1.ID, m.OrganizationID)

	m, prev, err = repo.ReplaceMembership(ctx, organization.Membership{OrganizationID: org2.ID, UserID: member.ID, Role: access.OrgRoleMember, JoinedAt: now})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, org1.ID, prev.OrganizationID)
	assert.Equal(t, org2.ID, m.OrganizationID)

	got, err := repo.GetMembership(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, org2.ID, got.OrganizationID)

	members, err := repo.QueryMembers(ctx, org1.ID, organization.MemberFilter{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "owner", members[0].Username)

	_, _, err = repo.ReplaceMembership(ctx, organization.Membership{OrganizationID: 9999, UserID: member.ID, Role: access.OrgRoleMember, JoinedAt: now})
	assert.True(t, core.IsNotFound(err))
	got, err = repo.GetMembership(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, org2.ID, got.OrganizationID, "failed switch must keep the previous membership")
}

func TestOrganizationRepository_concurrentJoins(t *testing.T) {
	db := prepareDB(t)
	users := NewUserRepository(db)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	member := createUser(t, users, "member", user.RoleStudent)
	orgIDs := make([]int, 0, 4)
	for _, name := range []string{"One", "Two", "Three", "Four"} {
		org, _, err := repo.CreateOrganization(ctx,
			organization.Organization{Name: name, IsPublic: true, DiscussionPrivacy: "public", CreatedAt: now, UpdatedAt: now},
			organization.Membership{UserID: createUser(t, users, "owner"+name, user.RoleTeacher).ID, Role: access.OrgRoleAdmin, JoinedAt: now},
		)
		require.NoError(t, err)
		orgIDs = append(orgIDs, org.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(orgIDs))
	for i, orgID := range orgIDs {
		wg.Add(1)
		go func(i, orgID int) {
			defer wg.Done()
			_, _, errs[i] = repo.ReplaceMembership(ctx, organization.Membership{OrganizationID: orgID, UserID: member.ID, Role: access.OrgRoleMember, JoinedAt: now})
		}(i, orgID)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	var n int
	require.NoError(t, db.Get(&n, `SELECT count(*) FROM membership WHERE user_id = $1`, member.ID))
	assert.Equal(t, 1, n)
}

func TestClassRepository_cascade(t *testing.T) {
	db := prepareDB(t)
	users := NewUserRepository(db)
	classes := NewClassRepository(db)
	events := NewScheduleRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	teacher := createUser(t, users, "teacher", user.RoleTeacher)
	student := createUser(t, users, "student", user.RoleStudent)

	c, err := classes.CreateClass(ctx, class.Class{Name: "Algebra", SubjectID: 1, GradeLevel: 7, TeacherID: teacher.ID, CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", c.SubjectName)
	assert.Equal(t, "teacher", c.TeacherName)

	_, err = classes.CreateEnrollment(ctx, class.Enrollment{ClassID: c.ID, StudentID: student.ID, EnrolledAt: now})
	require.NoError(t, err)
	_, err = classes.CreateEnrollment(ctx, class.Enrollment{ClassID: c.ID, StudentID: student.ID, EnrolledAt: now})
	assert.Equal(t, class.ErrAlreadyEnrolled, err)

	visible, err := classes.QueryClasses(ctx, access.ClassScope{Kind: access.ScopeStudent, UserID: student.ID}, class.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, 1, visible[0].StudentCount)

	evt, err := events.CreateEvent(ctx, schedule.Event{
		ClassID: c.ID, Title: "Quiz", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour), CreatedBy: teacher.ID, CreatedAt: now,
	})
	require.NoError(t, err)

	require.NoError(t, classes.DeleteClass(ctx, c.ID))
	_, err = events.GetEvent(ctx, evt.ID)
	assert.True(t, core.IsNotFound(err))
	enrolled, err := classes.IsEnrolled(ctx, c.ID, student.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func TestDiscussionRepository_replies(t *testing.T) {
	db := prepareDB(t)
	users := NewUserRepository(db)
	repo := NewDiscussionRepository(db)
	ctx := context.Background()
	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	author := createUser(t, users, "author", user.RoleTeacher)
	d, err := repo.CreateDiscussion(ctx, discussion.Discussion{
		Title: "Hello", Content: "World", AuthorID: author.ID, Category: discussion.DefaultCategory,
		Tags: []string{"intro"}, CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	assert.True(t, d.IsGlobal())
	assert.Equal(t, []string{"intro"}, d.Tags)

	replied := created.Add(30 * time.Minute)
	r, err := repo.CreateReply(ctx, discussion.Reply{DiscussionID: d.ID, AuthorID: author.ID, Content: "first", CreatedAt: replied})
	require.NoError(t, err)
	assert.Equal(t, "author", r.AuthorName)

	d, err = repo.GetDiscussion(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.ReplyCount)
	assert.True(t, d.UpdatedAt.Equal(replied))

	global, err := repo.QueryDiscussions(ctx, discussion.QueryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, global, 1)

	require.NoError(t, repo.DeleteDiscussion(ctx, d.ID))
	_, err = repo.GetReply(ctx, r.ID)
	assert.True(t, core.IsNotFound(err))
}
