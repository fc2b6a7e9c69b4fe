package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/apps/shared"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/discussion"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/resource"
	"github.com/trezcool/darasa/core/schedule"
	"github.com/trezcool/darasa/core/subject"
	"github.com/trezcool/darasa/core/user"
	appfs "github.com/trezcool/darasa/fs"
	emailsvc "github.com/trezcool/darasa/services/email"
	eventsvc "github.com/trezcool/darasa/services/events"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/cache"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger, err := logsvc.NewRollbarLogger(conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	defer logger.Sync()

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	// set up token revocation
	var revoked core.TokenRevocationStore
	if conf.RedisAddress != "" {
		rdb, err := cache.NewRedisClient(context.Background(), conf.RedisAddress)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up redis: %v", err), err)
		}
		defer func() { _ = rdb.Close() }()
		revoked = cache.NewRedisRevocationStore(rdb)
	} else {
		logger.Warn("no redis configured: revoked tokens are kept in memory")
		revoked = cache.NewMemoryRevocationStore()
	}

	publisher, closePublisher, err := eventsvc.NewPublisher(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up event publisher: %v", err), err)
	}
	defer closePublisher()

	// set up services
	mailSvc := emailsvc.NewService(conf, logger)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, logger, conf)
	orgSvc := organization.NewService(sqlxrepos.NewOrganizationRepository(db), publisher, logger)
	subjectSvc := subject.NewService(sqlxrepos.NewSubjectRepository(db))
	classSvc := class.NewService(sqlxrepos.NewClassRepository(db), usrSvc, subjectSvc, orgSvc, publisher, logger)
	resourceSvc := resource.NewService(sqlxrepos.NewResourceRepository(db), classSvc)
	scheduleSvc := schedule.NewService(sqlxrepos.NewScheduleRepository(db), classSvc)
	discussionSvc := discussion.NewService(sqlxrepos.NewDiscussionRepository(db), orgSvc)
	dashboardSvc := dashboard.NewService(orgSvc, classSvc, resourceSvc, scheduleSvc, discussionSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := shared.NewValidator()
	core.ParseEmailTemplates(appfs.FS, logger, false)
	user.LoadCommonPasswords(appfs.FS, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		UserSvc:         usrSvc,
		OrgSvc:          orgSvc,
		SubjectSvc:      subjectSvc,
		ClassSvc:        classSvc,
		ResourceSvc:     resourceSvc,
		ScheduleSvc:     scheduleSvc,
		DiscussionSvc:   discussionSvc,
		DashboardSvc:    dashboardSvc,
		RevocationStore: revoked,
		Validate:        validate,
		Translator:      translator,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
