package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"tictacarm/internal/adapters"
	"tictacarm/internal/bootstrap"
	gameDelivery "tictacarm/internal/delivery/game"
	"tictacarm/internal/domain/pose"
	ownMiddleware "tictacarm/internal/middleware"
	repo "tictacarm/internal/repository"
	gameuc "tictacarm/internal/usecase/game"
	"tictacarm/internal/usecase/motion"
	"tictacarm/internal/usecase/opponent"
)

type stores struct {
	redisAdapter *adapters.AdapterRedis
	mongoAdapter *adapters.AdapterMongo
	snapshots    *repo.SnapshotRepository
	archive      *repo.ArchiveRepository
}

func main() {
	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		NewLogger(false).Errorw("Failed to setup configuration", "error", err)
		return
	}
	logger := NewLogger(cfg.LogDevelopment)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleShutdown(cancel, logger)

	link := adapters.NewAdapterSerial(cfg, logger)
	if err := link.Init(ctx); err != nil {
		logger.Warnw("arm controller not connected, motion disabled", "error", err)
	}
	defer link.Close(context.Background())

	poses := loadPoses(cfg, logger)
	driver := motion.NewDriver(link, poses, motionConfig(cfg), logger)
	selector := opponent.NewSelector(opponent.NewTimeSeededRand(), cfg.EasyRandomProb)
	hub := gameDelivery.NewHub(logger)

	gameUC := gameuc.NewGameUseCase(driver, selector, logger).WithPublisher(hub)

	st := initStores(ctx, logger, cfg)
	defer st.close(context.Background())

	var archive gameDelivery.ArchiveReader
	if st.archive != nil {
		gameUC.WithArchive(st.archive)
		archive = st.archive
	}
	if st.snapshots != nil {
		restoreSnapshot(ctx, logger, gameUC, st.snapshots)
		gameUC.WithStore(st.snapshots)
	}

	gameUC.Home(ctx)

	limiter := ownMiddleware.NewRateLimiter(cfg.RateLimitRps, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx)

	r := chi.NewRouter()
	if cfg.IsLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(limiter.Middleware)
	gameDelivery.NewGameHandler(*cfg, logger, gameUC, hub, archive).Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("Failed to start server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http shutdown", "error", err)
	}
	hub.Close()
	gameUC.Home(shutdownCtx)
	logger.Info("arm parked, bye")
}

func NewLogger(development bool) *zap.SugaredLogger {
	build := zap.NewProduction
	if development {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func loadPoses(cfg *bootstrap.Config, log *zap.SugaredLogger) *repo.PoseRepository {
	calibration, err := repo.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		log.Errorw("calibration not loaded, arm will not move to cells", "path", cfg.CalibrationPath, "error", err)
		calibration = pose.CalibrationMap{}
	}
	poses := repo.NewPoseRepository(calibration)
	log.Infof("calibrated cells: %v", poses.Calibrated())
	if missing := poses.Missing(); len(missing) > 0 {
		log.Warnf("uncalibrated cells: %v", missing)
	}
	return poses
}

func motionConfig(cfg *bootstrap.Config) motion.Config {
	mc := motion.DefaultConfig()
	mc.MoveSteps = cfg.MoveSteps
	mc.MoveDelay = cfg.MoveDelay()
	mc.MoveSettle = cfg.MoveSettle()
	mc.HomeSteps = cfg.HomeSteps
	mc.HomeDelay = cfg.HomeDelay()
	mc.HomeSettle = cfg.HomeSettle()
	return mc
}

func initStores(ctx context.Context, log *zap.SugaredLogger, cfg *bootstrap.Config) *stores {
	st := &stores{}

	if cfg.RedisUrl != "" {
		redisAdapter := adapters.NewAdapterRedis(cfg, log)
		if err := redisAdapter.Init(ctx); err != nil {
			log.Warnw("redis unavailable, snapshots not cached", "error", err)
		} else {
			st.redisAdapter = redisAdapter
			st.snapshots = repo.NewSnapshotRepository(log, redisAdapter.GetClient())
		}
	}

	if cfg.MongoUri != "" {
		mongoAdapter := adapters.NewAdapterMongo(cfg, log)
		if err := mongoAdapter.Init(ctx); err != nil {
			log.Warnw("mongo unavailable, games not archived", "error", err)
		} else {
			st.mongoAdapter = mongoAdapter
			st.archive = repo.NewArchiveRepository(log, mongoAdapter.Database)
		}
	}

	return st
}

func (s *stores) close(ctx context.Context) {
	if s.redisAdapter != nil {
		_ = s.redisAdapter.Close(ctx)
	}
	if s.mongoAdapter != nil {
		_ = s.mongoAdapter.Close(ctx)
	}
}

func restoreSnapshot(ctx context.Context, log *zap.SugaredLogger, gameUC *gameuc.GameUseCase, snapshots *repo.SnapshotRepository) {
	saved, err := snapshots.Last(ctx)
	if err != nil {
		log.Debugf("no game restored: %v", err)
		return
	}
	if err := gameUC.Restore(saved); err != nil {
		log.Warnw("cached game rejected", "error", err)
		return
	}
	log.Infof("restored game %s with %d moves", saved.GameID, len(saved.Moves))
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
}
