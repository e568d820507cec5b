package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"project-service/internal/actor"
	"project-service/internal/authz"
	"project-service/internal/config"
	"project-service/internal/domain"
	"project-service/internal/gate"
	"project-service/internal/obs"
	"project-service/internal/publisher"
	"project-service/internal/repository"
	"project-service/internal/resolver"
	"project-service/internal/server"
	"project-service/internal/service"
	"project-service/internal/tracker"
)

func setupLogging(cfg config.Log) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Could not load configuration")
	}
	setupLogging(cfg.Log)

	log.Info("Starting database migration...")
	m, err := migrate.New(cfg.DB.MigrationsURL, cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not create migrate instance")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.WithField("error", err).Fatal("Could not apply migration")
	}
	log.Info("Database migration finished successfully.")

	db, err := sql.Open("postgres", cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not connect to the database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DB.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		log.WithField("error", err).Fatal("Could not ping the database")
	}
	log.Info("Successfully connected to the PostgreSQL database.")

	obs.Init()

	// Repositories
	hooks := repository.NewHooks()
	projectRepo := repository.NewPostgresProjectRepository(db, hooks)
	boardRepo := repository.NewPostgresBoardRepository(db, hooks)
	sprintRepo := repository.NewPostgresSprintRepository(db, hooks)
	taskRepo := repository.NewPostgresTaskRepository(db, hooks)
	commentRepo := repository.NewPostgresCommentRepository(db, hooks)
	membershipRepo := repository.NewPostgresMembershipRepository(db, hooks)
	labelRepo := repository.NewPostgresLabelRepository(db, hooks)
	roleRepo := repository.NewPostgresRoleRepository(db)
	auditRepo := repository.NewPostgresAuditRepository(db)
	owners := repository.NewPostgresOwnerRepository(db)

	// Ownership lookups
	registry := resolver.New()
	for _, err := range []error{
		registry.Register(domain.KindProject, owners.ProjectOwner),
		registry.Register(domain.KindBoard, owners.BoardOwner),
		registry.Register(domain.KindTask, owners.TaskOwner),
		registry.Register(domain.KindMembership, owners.MembershipOwner),
		registry.Register(domain.KindLabel, owners.LabelOwner),
		registry.RegisterVia(domain.KindSprint, domain.KindBoard, owners.SprintBoard),
		registry.RegisterVia(domain.KindComment, domain.KindTask, owners.CommentTask),
	} {
		if err != nil {
			log.WithError(err).Fatal("Could not register ownership lookup")
		}
	}
	if err := registry.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid ownership lookup registry")
	}

	// Audit trail
	var auditPublisher service.AuditPublisher
	if cfg.Kafka.Brokers != "" {
		p, err := publisher.NewAuditPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.WithError(err).Fatal("Could not create audit publisher")
		}
		defer p.Close()
		auditPublisher = p
	} else {
		log.Warn("KAFKA_BROKERS is not set, audit events are stored but not published")
	}
	auditService := service.NewAuditService(auditRepo, auditPublisher)

	tracker.New(auditService, registry).Install(hooks,
		domain.KindProject,
		domain.KindBoard,
		domain.KindSprint,
		domain.KindTask,
		domain.KindComment,
		domain.KindMembership,
		domain.KindLabel,
	)

	// Authorization
	authority, err := authz.NewAuthority(membershipRepo, roleRepo, authz.WithGlobalRoles(cfg.Authz.AllowGlobalRoles))
	if err != nil {
		log.WithError(err).Fatal("Could not create permission authority")
	}
	guard := gate.New(registry, authority)

	seedCtx, endSeed, err := actor.System(context.Background())
	if err != nil {
		log.WithError(err).Fatal("Could not open system scope")
	}
	if err := roleRepo.EnsureResources(seedCtx, domain.Resources()); err != nil {
		log.WithError(err).Fatal("Could not seed resource catalog")
	}
	endSeed()

	// Services
	srv := server.NewServer(server.Services{
		Projects:    service.NewProjectService(projectRepo, membershipRepo, roleRepo, cfg.Authz.OwnerRole, cfg.Authz.AllowGlobalRoles),
		Boards:      service.NewBoardService(boardRepo, sprintRepo),
		Tasks:       service.NewTaskService(taskRepo, sprintRepo),
		Comments:    service.NewCommentService(commentRepo),
		Labels:      service.NewLabelService(labelRepo),
		Memberships: service.NewMembershipService(membershipRepo, roleRepo, cfg.Authz.AllowGlobalRoles),
		Roles:       service.NewRoleService(roleRepo),
		Audit:       auditService,
	}, db)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(obs.Instrument())
	e.GET("/metrics", echo.WrapHandler(obs.Handler()))

	srv.Register(e, server.NewIdentity(cfg.Auth.JWTSecret, cfg.Auth.Issuer), guard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("port", cfg.HTTP.Port).Info("Project service is starting with Echo")
		if err := e.Start(":" + cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithField("error", err).Fatal("Echo server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down project service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
