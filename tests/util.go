// Package testutil wires the services on top of the in-memory repositories for the tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trezcool/darasa/apps/shared"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/discussion"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/resource"
	"github.com/trezcool/darasa/core/schedule"
	"github.com/trezcool/darasa/core/subject"
	"github.com/trezcool/darasa/core/user"
	appfs "github.com/trezcool/darasa/fs"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/events"
	"github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database/inmem"
)

type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Repos      inmemdb.Repositories
	Mail       *emailsvc.ConsoleServiceMock
	Publisher  *eventsvc.MemoryPublisher
	Validate   *validator.Validate
	Translator ut.Translator

	Users       *user.Service
	Orgs        *organization.Service
	Subjects    *subject.Service
	Classes     *class.Service
	Resources   *resource.Service
	Schedule    *schedule.Service
	Discussions *discussion.Service
	Dashboard   *dashboard.Service
}

func NewConfig() *core.Config {
	conf := &core.Config{
		AppName:                   "Darasa",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "s3cr3t-k3y-for-t3sts",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        15 * time.Minute,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
	}
	conf.SetDefaultFromEmail("Darasa <noreply@darasa.test>")
	return conf
}

// NewEnv returns fresh services backed by an empty in-memory database.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := NewConfig()
	logger := logsvc.NewZapLogger(zap.NewNop())
	core.ParseEmailTemplates(appfs.FS, logger, true /* strict */)
	user.LoadCommonPasswords(appfs.FS, logger)
	validate, translator := shared.NewValidator()

	repos := inmemdb.NewRepositories(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	publisher := eventsvc.NewMemoryPublisher()

	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Repos:      repos,
		Mail:       mailSvc,
		Publisher:  publisher,
		Validate:   validate,
		Translator: translator,
	}
	env.Users = user.NewService(repos.Users, mailSvc, logger, conf)
	env.Orgs = organization.NewService(repos.Organizations, publisher, logger)
	env.Subjects = subject.NewService(repos.Subjects)
	env.Classes = class.NewService(repos.Classes, env.Users, env.Subjects, env.Orgs, publisher, logger)
	env.Resources = resource.NewService(repos.Resources, env.Classes)
	env.Schedule = schedule.NewService(repos.Schedule, env.Classes)
	env.Discussions = discussion.NewService(repos.Discussions, env.Orgs)
	env.Dashboard = dashboard.NewService(env.Orgs, env.Classes, env.Resources, env.Schedule, env.Discussions)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	firstName, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName: firstName,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// Principal reloads the principal of `usr`, reflecting their current membership.
func (env *Env) Principal(t *testing.T, usr user.User) access.Principal {
	t.Helper()
	p, err := env.Orgs.Principal(context.Background(), usr)
	if err != nil {
		t.Fatalf("Principal(): %v", err)
	}
	return p
}

// CreateOrganization creates an organization administered by `owner` (a teacher).
func (env *Env) CreateOrganization(t *testing.T, owner user.User, name string, isPublic bool) organization.Organization {
	t.Helper()
	org, err := env.Orgs.Create(context.Background(), env.Principal(t, owner), organization.NewOrganization{
		Name:     name,
		IsPublic: &isPublic,
	})
	if err != nil {
		t.Fatalf("CreateOrganization(): %v", err)
	}
	return org
}

func (env *Env) Join(t *testing.T, usr user.User, orgID int) organization.JoinResult {
	t.Helper()
	res, err := env.Orgs.Join(context.Background(), env.Principal(t, usr), orgID)
	if err != nil {
		t.Fatalf("Join(): %v", err)
	}
	return res
}

// AddMember makes `usr` a member of `orgID` regardless of the organization's visibility.
func (env *Env) AddMember(t *testing.T, usr user.User, orgID int, role string) organization.Membership {
	t.Helper()
	m, _, err := env.Repos.Organizations.ReplaceMembership(context.Background(), organization.Membership{
		OrganizationID: orgID,
		UserID:         usr.ID,
		Role:           role,
		JoinedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddMember(): %v", err)
	}
	return m
}

func (env *Env) CreateClass(t *testing.T, teacher user.User, name string, gradeLevel int) class.Class {
	t.Helper()
	c, err := env.Classes.Create(context.Background(), env.Principal(t, teacher), class.NewClass{
		Name:       name,
		SubjectID:  1,
		GradeLevel: gradeLevel,
	})
	if err != nil {
		t.Fatalf("CreateClass(): %v", err)
	}
	return c
}

func (env *Env) Enroll(t *testing.T, teacher user.User, classID int, student user.User) class.Enrollment {
	t.Helper()
	e, err := env.Classes.Enroll(context.Background(), env.Principal(t, teacher), classID, student.ID)
	if err != nil {
		t.Fatalf("Enroll(): %v", err)
	}
	return e
}
