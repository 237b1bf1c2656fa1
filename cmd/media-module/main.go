// Точка входа Media Module — модуль реестра медиа-активов.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт репозитории, сервисный слой и API handlers, запускает
// topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/mediastore/internal/api/handlers"
	"github.com/bigkaa/mediastore/internal/api/middleware"
	"github.com/bigkaa/mediastore/internal/config"
	"github.com/bigkaa/mediastore/internal/database"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/server"
	"github.com/bigkaa/mediastore/internal/service"
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
	logger.Info("Media Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждение о дефолтном значении topologymetrics
	if os.Getenv("MM_DEPHEALTH_GROUP") == "" {
		logger.Warn("MM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	assetRepo := repository.NewAssetRepository(pool)
	ownerRepo := repository.NewOwnerRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 6. Services
	cacheSvc := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	assetSvc := service.NewAssetService(assetRepo, cacheSvc, logger)
	ownerSvc := service.NewOwnerService(ownerRepo, logger)
	viewSvc := service.NewViewService(txRunner, cacheSvc, logger)

	// 7. Readiness checker (PostgreSQL)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)

	// 8. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, assetSvc, ownerSvc, viewSvc, logger)

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"media-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. HTTP-сервер: metrics + logging middleware
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 11. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Media Module остановлен")
}
