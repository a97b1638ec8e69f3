package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/trendgym/internal/api"
	"github.com/skalibog/trendgym/internal/candles"
	"github.com/skalibog/trendgym/internal/config"
	"github.com/skalibog/trendgym/internal/exchange"
	"github.com/skalibog/trendgym/internal/exercise"
	"github.com/skalibog/trendgym/internal/feedback"
	"github.com/skalibog/trendgym/internal/listing"
	"github.com/skalibog/trendgym/internal/model"
	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/internal/storage/file"
	"github.com/skalibog/trendgym/internal/storage/memory"
	"github.com/skalibog/trendgym/internal/storage/postgres"
	"github.com/skalibog/trendgym/internal/storage/redisstore"
	"github.com/skalibog/trendgym/internal/ui"
	"github.com/skalibog/trendgym/pkg/logger"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	envPath := flag.String("env", ".env", "путь к файлу с переменными окружения")
	rebuild := flag.Bool("rebuild", false, "сгенерировать пул заново")
	flag.Parse()

	config.LoadEnv(*envPath)

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}
	if *rebuild {
		cfg.Exercises.Rebuild = true
	}

	if err := logger.Init(cfg.Log.LoggerOptions()); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Завершение с ошибкой", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// stores набор хранилищ, выбранный storage.type
type stores struct {
	listings storage.ListingStore
	pool     storage.PoolStore
	users    storage.UserStore
	archive  storage.CandleArchive
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{archive: storage.NoopArchive{}}

	switch cfg.Storage.Type {
	case "memory":
		s.listings = memory.NewListingStore()
		s.pool = memory.NewPoolStore()
		s.users = memory.NewUserStore()

	case "file":
		fs, err := file.NewStore(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		s.listings, s.pool, s.users = fs, fs, fs

	case "redis":
		rs, err := redisstore.NewStore(ctx, cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB, cfg.Storage.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = rs.Close() })

		// пул слишком велик для одного ключа и остается в файле
		fs, err := file.NewStore(cfg.Storage.Dir)
		if err != nil {
			s.close()
			return nil, err
		}
		s.listings, s.pool, s.users = rs, fs, rs

	case "postgres":
		pgPool, err := postgres.NewPool(ctx, cfg.Storage.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pgPool.Close)
		if err := pgPool.Migrate(ctx); err != nil {
			s.close()
			return nil, err
		}
		pg := postgres.NewStore(pgPool)

		fs, err := file.NewStore(cfg.Storage.Dir)
		if err != nil {
			s.close()
			return nil, err
		}
		s.listings, s.pool, s.users = pg, pg, fs

	default:
		return nil, fmt.Errorf("неизвестный тип хранилища %q", cfg.Storage.Type)
	}

	if cfg.Storage.Influx.Enabled {
		archive, err := storage.NewInfluxArchive(ctx, cfg.Storage.Influx)
		if err != nil {
			// архив необязателен
			logger.Warn("InfluxDB недоступен, архив отключен", zap.Error(err))
		} else {
			s.archive = archive
			s.closers = append(s.closers, archive.Close)
		}
	}

	logger.Info("Хранилища инициализированы",
		zap.String("type", cfg.Storage.Type),
		zap.Bool("influx", cfg.Storage.Influx.Enabled))
	return s, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	defer st.close()

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента биржи: %w", err)
	}

	registry := listing.NewRegistry(client, st.listings, listing.Options{
		Epoch:         cfg.Listing.Epoch,
		ProbeInterval: cfg.Listing.ProbeInterval,
		BatchSize:     cfg.Listing.BatchSize,
		MaxProbes:     cfg.Listing.MaxProbes,
		Progress:      ui.NewProgress(os.Stderr, "Поиск дат листинга"),
	})
	fetcher := candles.NewFetcher(client, registry, time.Now)

	seed := cfg.Exercises.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sampler := exercise.NewSampler(registry, fetcher, exercise.SamplerOptions{
		Rand:        rand.New(rand.NewSource(seed)),
		MaxAttempts: cfg.Exercises.MaxAttempts,
		Archive:     st.archive,
		Progress:    ui.NewProgress(os.Stderr, "Генерация упражнений"),
	})

	builder := exercise.NewBuilder(client, registry, sampler, st.pool, exercise.BuildOptions{
		Size:         cfg.Exercises.PoolSize,
		WindowLength: cfg.Exercises.WindowLength,
		Interval:     cfg.Exercises.Interval,
		Rebuild:      cfg.Exercises.Rebuild,
	})
	pool, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("ошибка подготовки пула упражнений: %w", err)
	}
	fmt.Fprintln(os.Stderr, ui.PoolSummary(pool.Exercises()))

	codec := model.NewNetworkCodec(cfg.Feedback.FeaturePoints, cfg.Feedback.HiddenSize,
		cfg.Feedback.LearningRate, cfg.Exercises.Seed)
	loop := feedback.NewLoop(pool, st.users, codec, st.archive)

	server := api.NewServer(pool, loop, api.Options{
		Addr: cfg.Server.Addr,
		Mode: cfg.Server.Mode,
		Seed: cfg.Exercises.Seed,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Run)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ошибка остановки HTTP сервера: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Работа завершена")
	return nil
}
