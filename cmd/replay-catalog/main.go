// Точка входа каталога реплеев.
// Загружает конфигурацию, подключает хранилище записей (PostgreSQL или in-memory)
// и файловое хранилище (fs или S3), создаёт сервисный слой и API handlers,
// запускает планировщик очистки, topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/replaystore/internal/api/handlers"
	"github.com/bigkaa/replaystore/internal/api/middleware"
	"github.com/bigkaa/replaystore/internal/config"
	"github.com/bigkaa/replaystore/internal/database"
	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/repository"
	"github.com/bigkaa/replaystore/internal/scheduler"
	"github.com/bigkaa/replaystore/internal/server"
	"github.com/bigkaa/replaystore/internal/service"
	"github.com/bigkaa/replaystore/internal/storage"
	"github.com/bigkaa/replaystore/internal/storage/filestore"
	"github.com/bigkaa/replaystore/internal/storage/s3store"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Replay Catalog запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("blob_driver", cfg.BlobDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Хранилище записей
	var (
		replayRepo service.ReplayRepository
		aggregator service.RatingAggregator
		pgDB       *sql.DB
		checkers   = map[string]handlers.ReadinessChecker{}
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics: проверка идёт
		// через тот же пул соединений.
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		replayRepo = repository.NewReplayRepository(pool)
		aggregator = repository.NewRatingRepository(pool)
		checkers["postgresql"] = database.NewReadinessChecker(pool)
	default:
		logger.Warn("Используется in-memory хранилище записей, данные не сохраняются между рестартами")
		replayRepo = repository.NewMemoryReplayRepository()
		aggregator = repository.NewMemoryRatingRepository()
	}

	// 4. Файловое хранилище артефактов
	store, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Сервисы
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	lifecycle := service.NewLifecycleController(replayRepo, store, service.RoleAuthorizer{}, cache, logger)
	sweeper := service.NewCleanupSweeper(replayRepo, lifecycle, model.CleanupAge, logger)

	apiHandler := handlers.NewAPIHandler(handlers.Deps{
		Search:        service.NewSearchService(replayRepo, cache, logger),
		Replays:       service.NewReplayService(replayRepo, store, nil, cache, cfg.WeeklyUploadLimit, logger),
		Lifecycle:     lifecycle,
		Batch:         service.NewBatchService(replayRepo, store, lifecycle, cache, logger),
		Rating:        service.NewRatingService(replayRepo, aggregator, cache, logger),
		Cleanup:       sweeper,
		MaxUploadSize: cfg.MaxUploadSize,
	}, logger)
	healthHandler := handlers.NewHealthHandler(checkers)

	// 6. Аутентификация
	var auth func(http.Handler) http.Handler
	if cfg.AuthEnabled() {
		jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSURL,
			Issuer:          cfg.JWTIssuer,
			AdminGroups:     cfg.AdminGroups,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		auth = jwtAuth.Middleware()
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		auth = middleware.StaticActor(model.Actor{Subject: "local", Role: cfg.DevRole})
		logger.Warn("RC_JWKS_URL не задан, аутентификация отключена",
			slog.String("role", cfg.DevRole),
		)
	}

	// 7. Планировщик очистки
	var sched *scheduler.Scheduler
	if cfg.CleanupSchedule != "" {
		sched, err = scheduler.New(sweeper, cfg.CleanupSchedule, cfg.CleanupTimeout, logger)
		if err != nil {
			logger.Error("Ошибка создания планировщика очистки", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sched.Start(ctx)
		logger.Info("Планировщик очистки запущен",
			slog.String("schedule", cfg.CleanupSchedule),
			slog.Time("next_run", sched.Next()),
		)
	} else {
		logger.Info("Очистка по расписанию отключена")
	}

	// 8. topologymetrics — мониторинг зависимостей (PostgreSQL + IdP)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"replay-catalog",
		cfg.DephealthGroup,
		service.DephealthTargets{
			DB:          pgDB,
			PostgresURL: cfg.DatabaseURL(),
			JWKSURL:     cfg.JWKSURL,
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	switch {
	case errors.Is(dephealthErr, service.ErrNoDependencies):
		logger.Info("topologymetrics не запущен: нет внешних зависимостей")
	case dephealthErr != nil:
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	default:
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 9. HTTP-сервер
	router := server.NewRouter(apiHandler, healthHandler, auth, logger)
	srv := server.New(cfg, logger, router)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if sched != nil {
		sched.Stop()
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Replay Catalog остановлен")
}

// newBlobStore создаёт файловое хранилище по RC_BLOB_DRIVER.
func newBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.BlobDriver == config.BlobDriverS3 {
		logger.Info("Файловое хранилище: S3",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		}, logger)
	}

	logger.Info("Файловое хранилище: локальный каталог", slog.String("data_dir", cfg.DataDir))
	return filestore.New(cfg.DataDir, logger)
}
