package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jjatencia/exorawebipad/internal/client"
	"github.com/jjatencia/exorawebipad/internal/clock"
	"github.com/jjatencia/exorawebipad/internal/config"
	"github.com/jjatencia/exorawebipad/internal/db"
	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/repository"
	"github.com/jjatencia/exorawebipad/internal/service"
	"github.com/jjatencia/exorawebipad/internal/transport/httpapi"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	// 1. Environment (.env is optional on kiosks provisioned by env vars).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("load .env: %v", err)
	}

	appCfg, err := config.LoadAppConfig()
	if err != nil {
		logger.Fatalf("load app config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		logger.Fatalf("load db config: %v", err)
	}

	// 2. Local storage: gorm always holds audit events; the key-value entries
	// live in gorm or redis depending on STORAGE_DRIVER.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		logger.Fatalf("init db: %v", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		logger.Fatalf("auto migrate: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	var kv repository.KVRepository = repository.NewGormKVRepository(gormDB)
	if dbCfg.Driver == config.DriverRedis {
		rdb, err := db.NewRedisClient(context.Background(), dbCfg)
		if err != nil {
			logger.Fatalf("init redis: %v", err)
		}
		defer rdb.Close()
		kv = repository.NewRedisKVRepository(rdb, "")
	}
	events := repository.NewGormEventRepository(gormDB)

	// 3. Booking API client and application state.
	api := client.New(appCfg.APIBaseURL, appCfg.APITimeout)
	feed := service.NewNotificationFeed(appCfg.NotificationBuffer, logger)

	session := service.NewSessionService(api, kv, events, logger)
	store := service.NewAppointmentStore(api, session, kv, feed, appCfg.Location, logger)
	settlement := service.NewSettlementService(api, store, session, events, feed, logger)
	noShow := service.NewNoShowService(api, store, session, events, feed, logger)

	api.SetTokenSource(session)
	api.OnUnauthorized(session.HandleUnauthorized)
	session.OnTeardown(store.Reset)
	session.OnTeardown(settlement.Reset)
	session.OnTeardown(noShow.Reset)

	wallClock := clock.New(appCfg.Location, logger)
	if appCfg.ClockTick {
		if err := wallClock.Start(); err != nil {
			logger.Fatalf("start clock: %v", err)
		}
	}

	app := httpapi.NewApp(&httpapi.Handler{
		Session:      session,
		Appointments: store,
		Settlement:   settlement,
		NoShow:       noShow,
		Feed:         feed,
		Clock:        wallClock,
		Location:     appCfg.Location,
		Logger:       logger,
		FetchTimeout: appCfg.APITimeout,
	})

	// 4. Restore the previous session, if any, and load today.
	startCtx, cancel := context.WithTimeout(context.Background(), appCfg.APITimeout)
	if u, err := session.CheckAuth(startCtx); err == nil {
		logger.Printf("session restored for %s", u.Email)
		store.SetCurrentDate(time.Now().In(appCfg.Location))
	} else if !errors.Is(err, service.ErrNotAuthenticated) {
		logger.Printf("restore session: %v", err)
	}
	cancel()

	listenErr := make(chan error, 1)
	go func() {
		logger.Printf("front desk bridge listening on %s", appCfg.HTTPAddr)
		listenErr <- app.Listen(appCfg.HTTPAddr)
	}()

	// 5. Graceful shutdown.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	if err := waitForShutdown(stop, listenErr); err != nil {
		logger.Printf("http listen: %v", err)
	}

	logger.Println("shutting down...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	if err := wallClock.Stop(); err != nil {
		logger.Printf("clock shutdown: %v", err)
	}
}

// waitForShutdown blocks until a signal arrives or the listener stops, and
// returns the listener's error, if any. main's deferred closes still run.
func waitForShutdown(stop <-chan os.Signal, listenErr <-chan error) error {
	select {
	case <-stop:
		return nil
	case err := <-listenErr:
		return err
	}
}
