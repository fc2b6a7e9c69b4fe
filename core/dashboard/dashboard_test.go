package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/resource"
	"github.com/trezcool/darasa/core/schedule"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func newUser(t *testing.T, env *testutil.Env, uname, role string) user.User {
	return testutil.CreateUser(t, env.Repos.Users, uname, uname, uname+"@test.cd", "", role, true)
}

func TestService_Stats_teacher(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	founder := newUser(t, env, "founder", user.RoleTeacher)
	rector := newUser(t, env, "rector", user.RoleTeacher)
	nomad := newUser(t, env, "nomad", user.RoleTeacher)
	student := newUser(t, env, "student", user.RoleStudent)

	academy := env.CreateOrganization(t, founder, "Academy", true)
	lycee := env.CreateOrganization(t, rector, "Lycee", true)

	// nomad teaches a class at the academy, then moves to the lycee
	env.Join(t, nomad, academy.ID)
	env.Join(t, student, academy.ID)
	c := env.CreateClass(t, nomad, "Maths 5A", 5)
	env.Enroll(t, nomad, c.ID, student)
	start := time.Now().UTC().Add(time.Hour)
	_, err := env.Schedule.Create(ctx, env.Principal(t, nomad), schedule.NewEvent{ClassID: c.ID, Title: "Lesson", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	env.Join(t, nomad, lycee.ID)

	private := false
	rp := env.Principal(t, rector)
	_, err = env.Resources.Create(ctx, rp, resource.NewResource{Title: "Timetable", ResourceType: resource.TypeNote})
	require.NoError(t, err)
	_, err = env.Resources.Create(ctx, rp, resource.NewResource{Title: "Staff notes", ResourceType: resource.TypeNote, IsPublic: &private})
	require.NoError(t, err)

	stats, err := env.Dashboard.Stats(ctx, env.Principal(t, nomad))
	require.NoError(t, err)
	assert.Equal(t, "Lycee", stats.OrganizationName)
	assert.Zero(t, stats.ClassCount)
	assert.Zero(t, stats.StudentCount)
	assert.Equal(t, 1, stats.ResourceCount)
	assert.Empty(t, stats.UpcomingEvents)

	// the org admin sees the private resource too
	stats, err = env.Dashboard.Stats(ctx, rp)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ResourceCount)
}

func TestService_Stats_inactive(t *testing.T) {
	env := testutil.NewEnv(t)
	retired := testutil.CreateUser(t, env.Repos.Users, "retired", "retired", "retired@test.cd", "", user.RoleTeacher, false)

	_, err := env.Dashboard.Stats(context.Background(), env.Principal(t, retired))
	assert.Equal(t, core.ErrForbidden, err)
}
