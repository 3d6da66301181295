package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam_prep_backend/internal/config"
	"exam_prep_backend/internal/controller"
	"exam_prep_backend/internal/repository"
	"exam_prep_backend/internal/service"
	"exam_prep_backend/pkg/database"
	"exam_prep_backend/pkg/events"
	"exam_prep_backend/pkg/logger"
	"exam_prep_backend/pkg/monitoring"
	"exam_prep_backend/pkg/security"
	"exam_prep_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Events          events.Publisher
	services        *services
	limiter         *security.Limiter
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

// repositories groups the storage ports. Either the gorm or the memory
// implementations back them, depending on database.driver.
type repositories struct {
	attempts   service.AttemptStore
	history    service.AttemptHistoryReader
	rankings   service.RankingWriter
	quizzes    service.QuizCatalog
	violations service.ViolationLog
	statsCache service.StatisticsCache
}

type services struct {
	attempt    *service.AttemptService
	proctoring *service.ProctoringService
	statistics *service.StatisticsService
	calculator *service.StatisticsCalculator
}

type controllers struct {
	attempt    *controller.AttemptController
	proctoring *controller.ProctoringController
	statistics *controller.StatisticsController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig runs every registered callback; wired to the config watcher.
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{}
	if db != nil {
		attempts := repository.NewAttemptRepository(db)
		repos.attempts, repos.history, repos.rankings = attempts, attempts, attempts
		repos.quizzes = repository.NewQuizRepository(db)
		repos.violations = repository.NewViolationRepository(db)
	} else {
		attempts := repository.NewMemoryAttemptStore()
		repos.attempts, repos.history, repos.rankings = attempts, attempts, attempts
		repos.quizzes = repository.NewMemoryQuizCatalog()
		repos.violations = repository.NewMemoryViolationLog()
	}
	if rdb != nil {
		repos.statsCache = repository.NewRedisStatisticsCache(rdb)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}
	grader := service.NewAnswerGrader(
		service.WithMaxEditDistance(cfg.Scoring.MaxEditDistance),
		service.WithPartialMulti(cfg.Scoring.PartialMulti),
	)
	s.attempt = service.NewAttemptService(repos.attempts, repos.quizzes, a.Events, cfg.Scoring,
		service.WithGrader(grader),
		service.WithPauseLimit(cfg.Attempts.MaxPauseSeconds),
	)
	s.proctoring = service.NewProctoringService(
		repos.violations,
		repos.attempts,
		s.attempt,
		service.PolicyFromConfig(cfg.Proctoring),
	)
	s.calculator = service.NewStatisticsCalculator(repos.history,
		service.WithMinAttempts(cfg.Statistics.MinAttempts),
		service.WithRollingWindow(cfg.Statistics.RollingWindow),
	)
	s.statistics = service.NewStatisticsService(s.calculator, repos.quizzes, repos.rankings, repos.statsCache, cfg.Statistics.CacheTTL)

	a.RegisterConfigCallback(func(c *config.Config) {
		if err := logger.SetLevel(c); err != nil {
			logger.Log.Warn("Log level not reloaded", zap.Error(err))
		}
		s.proctoring.SetPolicy(service.PolicyFromConfig(c.Proctoring))
		s.calculator.SetThresholds(c.Statistics.MinAttempts, c.Statistics.RollingWindow)
		s.statistics.SetCacheTTL(c.Statistics.CacheTTL)
		logger.Log.Info("Proctoring and statistics policy reloaded",
			zap.Bool("disqualifyOnCritical", c.Proctoring.DisqualifyOnCritical),
			zap.Int("trustFloor", c.Proctoring.TrustFloor),
			zap.Int("minAttempts", c.Statistics.MinAttempts))
	})
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		attempt:    controller.NewAttemptController(s.attempt, s.proctoring),
		proctoring: controller.NewProctoringController(s.proctoring),
		statistics: controller.NewStatisticsController(s.statistics),
		health:     controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}
	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks runs the attempt expiry sweep and the limiter
// cleanup until ctx is cancelled.
func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	interval := time.Duration(a.Config.Attempts.ExpirySweepSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.attempt.ExpireOverdue(ctx); err != nil {
					logger.Log.Error("Attempt expiry sweep failed", zap.Error(err))
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.limiter.Sweep(now)
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	app := &App{Config: cfg, Events: events.NoopPublisher{}}

	if cfg.Database.Driver != "memory" {
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
		if err != nil {
			logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		}
		if cfg.ForceMigrate || cfg.Server.Mode != "release" {
			if err := database.Migrate(db); err != nil {
				logger.Log.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
		app.DB = db
	} else {
		logger.Log.Warn("Using in-memory storage; data is lost on restart")
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	}

	if cfg.Events.Enabled {
		pub, err := events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			logger.Log.Error("Failed to connect to event broker, events disabled", zap.Error(err))
		} else {
			app.Events = pub
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("quiz-core", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	repos := app.initRepositories(app.DB, app.Redis)
	svcs := app.initServices(repos, cfg)
	app.services = svcs
	ctrls := app.initControllers(svcs)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router
	app.limiter = security.NewLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx, svcs)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close(ctx)
	logger.Log.Info("Server exiting")
}

// Close stops background work and releases external connections.
func (a *App) Close(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Events != nil {
		a.Events.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
