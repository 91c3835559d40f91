package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/evolvere-edu/evolvere/apps/api/echo"
	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/account"
	"github.com/evolvere-edu/evolvere/core/class"
	"github.com/evolvere-edu/evolvere/core/course"
	"github.com/evolvere-edu/evolvere/core/form"
	"github.com/evolvere-edu/evolvere/core/material"
	"github.com/evolvere-edu/evolvere/core/session"
	"github.com/evolvere-edu/evolvere/core/subject"
	"github.com/evolvere-edu/evolvere/core/user"
	appfs "github.com/evolvere-edu/evolvere/fs"
	emailsvc "github.com/evolvere-edu/evolvere/services/email"
	logsvc "github.com/evolvere-edu/evolvere/services/logger"
	"github.com/evolvere-edu/evolvere/storage/database"
	sqlxrepos "github.com/evolvere-edu/evolvere/storage/database/sqlx"
	"github.com/evolvere-edu/evolvere/storage/files"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up file storage
	store, err := setUpFileStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	sessionSvc := session.NewService(sqlxrepos.NewSessionRepository(db), conf)
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(db))
	accountSvc := account.NewService(sqlxrepos.NewAccountRepository(db), usrRepo, courseSvc, mailSvc, conf)
	subjectSvc := subject.NewService(sqlxrepos.NewSubjectRepository(db))
	classSvc := class.NewService(sqlxrepos.NewClassRepository(db))
	formSvc := form.NewService(sqlxrepos.NewFormRepository(db))
	materialSvc := material.NewService(sqlxrepos.NewMaterialRepository(db), store, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.InitTokens(conf)

	core.ParseEmailTemplates(appfs.FS, conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			SessionSvc:  sessionSvc,
			AccountSvc:  accountSvc,
			CourseSvc:   courseSvc,
			SubjectSvc:  subjectSvc,
			ClassSvc:    classSvc,
			FormSvc:     formSvc,
			MaterialSvc: materialSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

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
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func setUpFileStore(conf *core.Config) (material.FileStore, error) {
	if conf.Uploads.Backend == "b2" {
		return files.NewB2Store(context.Background(), conf)
	}
	return files.NewLocalStore(filepath.Join(conf.WorkDir, conf.Uploads.Dir))
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
