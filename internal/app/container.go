// Package app wires the marketplace: database, repositories, services,
// event publishing, email delivery and the background scheduler.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/events"
	"github.com/BakiChantier/chantier-direct-sub000/internal/metrics"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/db"
	"github.com/BakiChantier/chantier-direct-sub000/internal/scheduler"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

// Container holds application dependencies / Contient les dépendances de l'application
type Container struct {
	Config   *config.Config
	DB       *sql.DB
	DBType   db.DatabaseType
	Repos    repository.Repositories
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Storage  *storage.Local
	Events   ports.EventPublisher
	Notifier *service.Notifier

	UserSvc         *service.UserService
	AuthSvc         *service.AuthService
	PasswordSvc     *service.PasswordService
	VerificationSvc *service.VerificationService

	Documents   *service.DocumentService
	Projects    *service.ProjectService
	Offers      *service.OfferService
	Moderation  *service.ModerationService
	Messages    *service.MessageService
	Evaluations *service.EvaluationService
	References  *service.ReferenceService
	Profiles    *service.ProfileService
	Contact     *service.ContactService

	Scheduler *scheduler.Scheduler

	sender    ports.EmailSender
	rawEvents ports.EventPublisher
	fs        afero.Fs
}

// Option customizes the container / Personnalise le conteneur
type Option func(*Container)

// WithEmailSender replaces the SMTP sender / Remplace l'expéditeur SMTP
func WithEmailSender(sender ports.EmailSender) Option {
	return func(c *Container) { c.sender = sender }
}

// WithEventPublisher replaces the configured publisher / Remplace le publieur configuré
func WithEventPublisher(pub ports.EventPublisher) Option {
	return func(c *Container) { c.rawEvents = pub }
}

// WithFs stores uploads on fs / Stocke les fichiers envoyés sur fs
func WithFs(fs afero.Fs) Option {
	return func(c *Container) { c.fs = fs }
}

// NewContainer initializes application container / Initialise le conteneur de l'application
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	c := &Container{Config: cfg, DBType: db.ParseDatabaseType(cfg.Database.Type)}
	for _, opt := range opts {
		opt(c)
	}

	// Own registry so several containers can coexist in tests / Registre propre au conteneur
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = metrics.NewMetrics(c.Registry)

	if err := c.initDatabase(); err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	if err := db.Migrate(c.DB, c.DBType, cfg.Database.MigrationsPath, db.MigrateUp); err != nil {
		c.Close()
		return nil, err
	}

	c.Repos = repository.NewAdapter(c.DB, c.DBType.String()).Repositories()
	slog.Info("repositories initialized", "db", c.DBType)

	if err := c.initInfrastructure(); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.initServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("service init: %w", err)
	}

	if err := c.initScheduler(); err != nil {
		c.Close()
		return nil, fmt.Errorf("scheduler init: %w", err)
	}

	c.UpdateDatabaseMetrics()
	return c, nil
}

// initDatabase initializes database connection / Initialise la connexion à la base de données
func (c *Container) initDatabase() error {
	dbConfig := db.DatabaseConfig{
		Type:         c.DBType,
		DSN:          c.Config.Database.DSN,
		MaxOpenConns: c.Config.Database.MaxOpenConns,
		MaxIdleConns: c.Config.Database.MaxIdleConns,
	}

	database, err := db.NewDatabaseInitializer(c.DBType).Initialize(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize %s database: %w", c.DBType, err)
	}
	c.DB = database
	return nil
}

// initInfrastructure sets up storage, events and email / Stockage, événements et emails
func (c *Container) initInfrastructure() error {
	cfg := c.Config

	if c.fs != nil {
		c.Storage = storage.New(c.fs, cfg.Storage.PublicURL)
	} else {
		local, err := storage.NewLocal(cfg.Storage.Root, cfg.Storage.PublicURL)
		if err != nil {
			return fmt.Errorf("storage init: %w", err)
		}
		c.Storage = local
	}

	if c.rawEvents == nil {
		if cfg.Events.Enabled {
			pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
			if err != nil {
				return fmt.Errorf("events init: %w", err)
			}
			c.rawEvents = pub
		} else {
			c.rawEvents = events.NewLogPublisher(cfg.Events.SubjectPrefix, slog.Default())
		}
	}
	c.Events = events.WithMetrics(c.rawEvents, c.Metrics)

	if c.sender == nil {
		emailSvc, err := service.NewEmailService(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize email service: %w", err)
		}
		c.sender = emailSvc
	}

	notifier, err := service.NewNotifier(c.sender, c.Metrics, cfg.Server.FrontendURL)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	c.Notifier = notifier
	return nil
}

// initServices initializes application services / Initialise les services applicatifs
func (c *Container) initServices() error {
	users, tokens := c.Repos.Users, c.Repos.RefreshTokens

	c.UserSvc = service.NewUserService(users, tokens, c.Config, c.Metrics)
	c.AuthSvc = service.NewAuthService(users, tokens, c.Config, c.DB, c.Metrics)
	c.PasswordSvc = service.NewPasswordService(users, tokens, c.Notifier, c.Config)
	c.VerificationSvc = service.NewVerificationService(users, c.Notifier, c.Config)

	deps := service.Deps{
		DB:       c.DB,
		Repos:    c.Repos,
		Storage:  c.Storage,
		Events:   c.Events,
		Notifier: c.Notifier,
		Metrics:  c.Metrics,
		Config:   c.Config,
	}
	c.Documents = service.NewDocumentService(deps)
	c.Projects = service.NewProjectService(deps, c.Documents)
	c.Offers = service.NewOfferService(deps, c.Documents)
	c.Moderation = service.NewModerationService(deps)
	c.Messages = service.NewMessageService(deps)
	c.Evaluations = service.NewEvaluationService(deps)
	c.References = service.NewReferenceService(deps)
	c.Profiles = service.NewProfileService(deps, c.Documents, c.References)
	c.Contact = service.NewContactService(deps)
	return nil
}

// initScheduler registers the maintenance jobs / Enregistre les tâches de maintenance
func (c *Container) initScheduler() error {
	sc := c.Config.Scheduler
	c.Scheduler = scheduler.New(c.Metrics, 0)

	if err := c.Scheduler.Add(scheduler.JobTokenPurge, specOr(sc.TokenPurge, "@daily"),
		scheduler.TokenPurge(c.Repos.RefreshTokens)); err != nil {
		return err
	}
	if err := c.Scheduler.Add(scheduler.JobDocumentExpiry, specOr(sc.DocumentExpiry, "@daily"),
		scheduler.DocumentExpiry(c.Documents)); err != nil {
		return err
	}

	if c.Config.Backup.Enabled {
		if c.DBType != db.SQLite {
			slog.Warn("database backup disabled, only sqlite is supported", "db", c.DBType)
		} else {
			spec := sc.Backup
			if spec == "" && c.Config.Backup.Interval > 0 {
				spec = "@every " + c.Config.Backup.Interval.String()
			}
			backup := NewBackup(c.DB, afero.NewOsFs(), c.Config.Database.DSN, c.Config.Backup.Path, c.Config.Backup.RetentionDays)
			if err := c.Scheduler.Add(scheduler.JobBackup, specOr(spec, "@every 24h"), backup.Run); err != nil {
				return err
			}
			slog.Info("automatic database backup enabled", "retention_days", c.Config.Backup.RetentionDays)
		}
	}
	return nil
}

func specOr(spec, fallback string) string {
	if spec != "" {
		return spec
	}
	return fallback
}

// Start launches background jobs when enabled / Lance les tâches de fond si activées
func (c *Container) Start() {
	if c.Config.Scheduler.Enabled {
		c.Scheduler.Start()
	}
}

// RunJob executes a named job now / Exécute une tâche immédiatement
func (c *Container) RunJob(ctx context.Context, name string) error {
	return c.Scheduler.RunNow(ctx, name)
}

// UpdateDatabaseMetrics updates database metrics / Met à jour les métriques de la BD
func (c *Container) UpdateDatabaseMetrics() {
	c.Metrics.UpdateDatabaseConnections(c.DB.Stats().OpenConnections)
}

// Close performs graceful shutdown / Effectue un arrêt gracieux
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Notifier != nil {
		c.Notifier.Wait()
	}
	if c.rawEvents != nil {
		if err := c.rawEvents.Close(); err != nil {
			slog.Warn("failed to close event publisher", "err", err)
		}
	}
	if c.DB != nil {
		slog.Info("closing database")
		return c.DB.Close()
	}
	return nil
}

// CreateAdmin creates a verified administrator / Crée un administrateur vérifié
func (c *Container) CreateAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	return c.UserSvc.CreateVerified(ctx, service.RegisterInput{
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
		Profile:  domain.Profile{CompanyName: "Chantier Direct"},
	})
}
