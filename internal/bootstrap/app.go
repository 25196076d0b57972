package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ropatopia/internal/app"
	"ropatopia/internal/auth"
	"ropatopia/internal/backend"
	"ropatopia/internal/cache"
	"ropatopia/internal/config"
	databaseClient "ropatopia/internal/platform/database"
	rabbitmqClient "ropatopia/internal/platform/rabbitmq"
	redisClient "ropatopia/internal/platform/redis"
	"ropatopia/internal/repository"
	"ropatopia/internal/worker"
)

const sweepInterval = 5 * time.Minute

// Services are the per-feature entry points the HTTP handlers call.
type Services struct {
	Auth          *app.AuthService
	Sessions      *app.SessionService
	Questionnaire *app.QuestionnaireService
	Ropa          *app.RopaService
	Upload        *app.UploadService
	Activities    *app.ActivityService
	Preliminary   *app.PreliminaryService
	Knowledge     *app.KnowledgeService
	Jobs          *app.BulkJobService
	Claude        *app.ClaudeService
}

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	MQConn    *amqp.Connection
	Backend   *backend.Client
	Clients   *auth.Manager
	Services  *Services
	JobWorker *worker.BulkJobWorker

	questionnaires *app.Registry[*app.Questionnaire]
	ropaSheets     *app.Registry[*app.RopaQuestionnaire]
	stopSweep      context.CancelFunc

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger := NewLogger(cfg.App.LogLevel, cfg.App.Env)

	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := databaseClient.New(ctx, databaseClient.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.MySQLDSN(),
		Path:   cfg.Database.SQLitePath,
		Debug:  cfg.App.GinMode == "debug",
	})
	if err != nil {
		return err
	}
	a.DB = db
	if err := databaseClient.Migrate(db); err != nil {
		return err
	}

	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.Redis = redisCli
	}

	storeOpts := []auth.StoreOption{auth.WithTTL(time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute)}
	if a.Redis != nil {
		storeOpts = append(storeOpts, auth.WithRedisClient(a.Redis))
	}
	store, err := auth.NewTokenStore(auth.StoreType(cfg.Auth.TokenStore), storeOpts...)
	if err != nil {
		return fmt.Errorf("create token store failed: %w", err)
	}
	a.Clients = auth.NewManager(store)

	var chatCache app.ChatCache
	if a.Redis != nil {
		chatCache = cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	a.Backend = backend.NewClient(cfg.Backend.BaseURL, cfg.BackendTimeout(), a.Logger.With("component", "backend"))
	a.wire(chatCache)

	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
		a.Services.Jobs.SetPublisher(rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.BulkJobQueue))
		a.JobWorker = worker.NewBulkJobWorker(mqConn, a.Services.Jobs, cfg.RabbitMQ.BulkJobQueue, a.Logger.With("component", "worker"))
		if err := a.JobWorker.Start(ctx); err != nil {
			return fmt.Errorf("start bulk job worker failed: %w", err)
		}
	} else {
		a.Logger.Info("rabbitmq disabled, bulk jobs run in process")
	}

	a.startSweeper()
	return nil
}

// Assemble builds an App over dependencies that are already connected. Bulk
// jobs run in process until a broker publisher is set.
func Assemble(cfg *config.Config, logger *slog.Logger, db *gorm.DB, backendClient *backend.Client, clients *auth.Manager, chatCache app.ChatCache) *App {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Backend:   backendClient,
		Clients:   clients,
		StartedAt: time.Now(),
	}
	a.wire(chatCache)
	return a
}

func (a *App) wire(chatCache app.ChatCache) {
	gateway := app.NewGateway(a.Backend, a.Logger)
	a.questionnaires = app.NewRegistry[*app.Questionnaire]()
	a.ropaSheets = app.NewRegistry[*app.RopaQuestionnaire]()

	jobs := app.NewBulkJobService(repository.NewBulkJobRepository(a.DB), nil, gateway, a.Clients, a.Logger.With("component", "jobs"))
	jobs.SetPublisher(&app.InlinePublisher{Process: jobs.Process, Logger: a.Logger})
	a.Services = &Services{
		Auth:          app.NewAuthService(gateway, a.dropWorkspaces, a.Logger),
		Sessions:      app.NewSessionService(gateway, a.questionnaires, chatCache, a.Logger),
		Questionnaire: app.NewQuestionnaireService(gateway, a.questionnaires, chatCache, a.Logger),
		Ropa:          app.NewRopaService(gateway, a.ropaSheets, a.Logger),
		Upload:        app.NewUploadService(gateway, a.Config.Upload.MaxSizeMB, a.Logger),
		Activities:    app.NewActivityService(gateway, a.Logger),
		Preliminary:   app.NewPreliminaryService(gateway, a.Logger),
		Knowledge:     app.NewKnowledgeService(gateway),
		Jobs:          jobs,
		Claude:        app.NewClaudeService(gateway, a.Logger),
	}
}

// dropWorkspaces forgets every open questionnaire of a client.
func (a *App) dropWorkspaces(clientID string) {
	a.questionnaires.DropClient(clientID)
	a.ropaSheets.DropClient(clientID)
}

func (a *App) startSweeper() {
	idle := a.Config.SessionIdle()
	if idle <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.stopSweep = cancel
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				clients := a.Clients.Sweep(idle)
				sheets := a.questionnaires.Sweep(idle) + a.ropaSheets.Sweep(idle)
				if clients+sheets > 0 {
					a.Logger.Debug("swept idle state", "clients", clients, "workspaces", sheets)
				}
			}
		}
	}()
}

func (a *App) Close() error {
	var closeErr error
	if a.stopSweep != nil {
		a.stopSweep()
	}
	if a.JobWorker != nil {
		a.JobWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Clients != nil {
		if err := a.Clients.Store().Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

// NewLogger builds the process logger: text output in dev, JSON elsewhere.
func NewLogger(level, env string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if env == "dev" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
