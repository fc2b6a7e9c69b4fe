package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func newUser(t *testing.T, env *testutil.Env, uname, role string) user.User {
	return testutil.CreateUser(t, env.Repos.Users, uname, uname, uname+"@test.cd", "", role, true)
}

func validationErr(t *testing.T, err error) error {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	return verr.Err
}

func newAccount(uname, role string) user.NewUser {
	return user.NewUser{
		Username:        uname,
		Email:           uname + "@test.cd",
		Role:            role,
		Password:        "Str0ng#Pa55!",
		PasswordConfirm: "Str0ng#Pa55!",
	}
}

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	_, err := env.Users.Register(ctx, newAccount("boss", user.RoleAdmin))
	assert.Equal(t, user.ErrAdminSelfRegister, validationErr(t, err))

	usr, err := env.Users.Register(ctx, newAccount("pupil", user.RoleStudent))
	require.NoError(t, err)
	assert.NotZero(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Str0ng#Pa55!"))

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "pupil@test.cd", sent[0].To[0].Address)
	assert.Equal(t, "welcome", sent[0].TemplateName)
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := newUser(t, env, "admin", user.RoleAdmin)
	teacher := newUser(t, env, "teacher", user.RoleTeacher)

	_, err := env.Users.Create(ctx, teacher, newAccount("pupil", user.RoleStudent))
	assert.Equal(t, core.ErrForbidden, err)

	retired := testutil.CreateUser(t, env.Repos.Users, "retired", "retired", "retired@test.cd", "", user.RoleAdmin, false)
	_, err = env.Users.Create(ctx, retired, newAccount("pupil", user.RoleStudent))
	assert.Equal(t, core.ErrForbidden, err)

	_, err = env.Users.Create(ctx, admin, newAccount("king", "king"))
	assert.Equal(t, user.ErrRoleNotAllowed, validationErr(t, err))

	usr, err := env.Users.Create(ctx, admin, newAccount("boss", user.RoleAdmin))
	require.NoError(t, err)
	assert.True(t, usr.IsAdmin())
}

func TestCanAssignRole(t *testing.T) {
	admin := user.User{ID: 1, Role: user.RoleAdmin, IsActive: true}
	teacher := user.User{ID: 2, Role: user.RoleTeacher, IsActive: true}

	assert.True(t, user.CanManageUsers(admin))
	assert.False(t, user.CanManageUsers(teacher))
	assert.False(t, user.CanManageUsers(user.User{ID: 3, Role: user.RoleAdmin}))

	assert.True(t, user.CanAssignRole(admin, user.RoleAdmin))
	assert.False(t, user.CanAssignRole(admin, "king"))
	assert.False(t, user.CanAssignRole(teacher, user.RoleStudent))
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := newUser(t, env, "admin", user.RoleAdmin)
	teacher := newUser(t, env, "teacher", user.RoleTeacher)
	student := newUser(t, env, "student", user.RoleStudent)
	inactive := false
	name := "Awesome"

	t.Run("others", func(t *testing.T) {
		_, err := env.Users.Update(ctx, teacher, student, user.UpdateUser{FirstName: &name})
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("admin fields", func(t *testing.T) {
		_, err := env.Users.Update(ctx, student, student, user.UpdateUser{Role: user.RoleTeacher})
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("self deactivation", func(t *testing.T) {
		_, err := env.Users.Update(ctx, admin, admin, user.UpdateUser{IsActive: &inactive})
		assert.Equal(t, user.ErrCannotDeactivateSelf, validationErr(t, err))
	})

	t.Run("own profile", func(t *testing.T) {
		usr, err := env.Users.Update(ctx, student, student, user.UpdateUser{FirstName: &name})
		require.NoError(t, err)
		assert.Equal(t, name, usr.FirstName)
	})

	t.Run("admin", func(t *testing.T) {
		usr, err := env.Users.Update(ctx, admin, teacher, user.UpdateUser{Role: user.RoleAdmin, Email: "boss@test.cd"})
		require.NoError(t, err)
		assert.True(t, usr.IsAdmin())
		assert.Equal(t, "boss@test.cd", usr.Email)
	})
}

func TestService_Deactivate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := newUser(t, env, "admin", user.RoleAdmin)
	teacher := newUser(t, env, "teacher", user.RoleTeacher)
	student := newUser(t, env, "student", user.RoleStudent)

	assert.Equal(t, core.ErrForbidden, env.Users.Deactivate(ctx, teacher, student.ID))
	assert.Equal(t, user.ErrCannotDeactivateSelf, validationErr(t, env.Users.Deactivate(ctx, admin, admin.ID)))
	assert.Equal(t, user.ErrNotFound, errors.Cause(env.Users.Deactivate(ctx, admin, 999)))

	require.NoError(t, env.Users.Deactivate(ctx, admin, student.ID))
	usr, err := env.Users.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)

	// inactive users cannot reset their password
	assert.Equal(t, user.ErrNotFound, env.Users.RequestPasswordReset(ctx, "student@test.cd"))
	assert.Empty(t, env.Mail.SentMessages())
}

func TestService_Supervision(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := newUser(t, env, "admin", user.RoleAdmin)
	head := newUser(t, env, "head", user.RoleTeacher)
	teacher := newUser(t, env, "teacher", user.RoleTeacher)
	other := newUser(t, env, "other", user.RoleTeacher)
	student := newUser(t, env, "student", user.RoleStudent)

	_, err := env.Users.AssignSupervisor(ctx, head, user.NewSupervision{SupervisorID: head.ID, SubordinateID: teacher.ID})
	assert.Equal(t, core.ErrForbidden, err)

	tests := []struct {
		name    string
		ns      user.NewSupervision
		wantErr error
	}{
		{name: "self", ns: user.NewSupervision{SupervisorID: head.ID, SubordinateID: head.ID}, wantErr: user.ErrSelfSupervision},
		{name: "student", ns: user.NewSupervision{SupervisorID: head.ID, SubordinateID: student.ID}, wantErr: user.ErrNotATeacher},
		{name: "unknown", ns: user.NewSupervision{SupervisorID: 999, SubordinateID: teacher.ID}, wantErr: user.ErrNotATeacher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Users.AssignSupervisor(ctx, admin, tt.ns)
			assert.Equal(t, tt.wantErr, validationErr(t, err))
		})
	}

	sup, err := env.Users.AssignSupervisor(ctx, admin, user.NewSupervision{SupervisorID: head.ID, SubordinateID: teacher.ID})
	require.NoError(t, err)
	_, err = env.Users.AssignSupervisor(ctx, admin, user.NewSupervision{SupervisorID: head.ID, SubordinateID: teacher.ID})
	assert.Equal(t, user.ErrSupervisionExists, validationErr(t, err))

	sups, err := env.Users.QuerySupervisions(ctx, teacher, user.SupervisionFilter{})
	require.NoError(t, err)
	require.Len(t, sups, 1)
	assert.Equal(t, sup.ID, sups[0].ID)

	sups, err = env.Users.QuerySupervisions(ctx, other, user.SupervisionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sups)

	_, err = env.Users.QuerySupervisions(ctx, student, user.SupervisionFilter{})
	assert.Equal(t, core.ErrForbidden, err)

	assert.Equal(t, core.ErrForbidden, env.Users.RemoveSupervision(ctx, head, sup.ID))
	require.NoError(t, env.Users.RemoveSupervision(ctx, admin, sup.ID))
	sups, err = env.Users.QuerySupervisions(ctx, admin, user.SupervisionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sups)
}
