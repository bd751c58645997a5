package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/rollcall/attendance-api/api/swagger"
	"github.com/rollcall/attendance-api/internal/handler"
	internalmiddleware "github.com/rollcall/attendance-api/internal/middleware"
	"github.com/rollcall/attendance-api/internal/repository"
	"github.com/rollcall/attendance-api/internal/service"
	"github.com/rollcall/attendance-api/pkg/cache"
	"github.com/rollcall/attendance-api/pkg/config"
	"github.com/rollcall/attendance-api/pkg/database"
	"github.com/rollcall/attendance-api/pkg/logger"
	corsmiddleware "github.com/rollcall/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/rollcall/attendance-api/pkg/middleware/requestid"
	"github.com/rollcall/attendance-api/pkg/notify"
)

// @title Rollcall Attendance API
// @version 1.0.0
// @description Single-class attendance board with two-tap confirmation and absence notifications.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var feed repository.ChangeFeed = repository.NewLocalChangeFeed()
	if redisClient != nil {
		feed = repository.NewRedisChangeFeed(redisClient, cfg.ChangeFeed.Channel, logr)
	}

	gateway, closeGateway, err := newGateway(ctx, cfg.Notify, logr)
	if err != nil {
		return err
	}
	defer closeGateway()

	studentRepo := repository.NewStudentRepository(db, feed, logr)
	attendanceRepo := repository.NewAttendanceRepository(db, feed, logr)

	metricsSvc := service.NewMetricsService()
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, gateway, metricsSvc, service.AttendanceConfig{
		Location:       cfg.Location(),
		SessionIdleTTL: cfg.SessionIdleTTL,
	}, logr)
	studentSvc := service.NewStudentService(studentRepo, validator.New(), logr)
	historySvc := service.NewHistoryService(attendanceRepo, studentRepo, logr)

	initializer := service.NewDayInitializer(attendanceSvc, studentRepo, attendanceRepo, service.DayInitConfig{
		Workers:    cfg.DayInit.Workers,
		Retries:    cfg.DayInit.Retries,
		RetryDelay: cfg.DayInit.RetryDelay,
	}, logr)
	go initializer.Run(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix),
		handler.NewAttendanceHandler(attendanceSvc),
		handler.NewStudentHandler(studentSvc),
		handler.NewHistoryHandler(historySvc),
	)

	srv := newServer(ctx, fmt.Sprintf(":%d", cfg.Port), r)

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("timezone", cfg.Location().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server forced shutdown", zap.Error(err))
	}
	return nil
}

// newServer builds the HTTP server. Request contexts derive from ctx so open
// streams end as soon as shutdown begins.
func newServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func registerRoutes(api *gin.RouterGroup, attendance *handler.AttendanceHandler, students *handler.StudentHandler, history *handler.HistoryHandler) {
	att := api.Group("/attendance")
	att.GET("/today", attendance.Today)
	att.GET("/today/stream", attendance.Stream)
	att.POST("/taps", attendance.Tap)
	att.POST("/days/:date/initialize", attendance.InitializeDay)
	att.DELETE("/selection", attendance.ClearSelection)
	att.DELETE("/errors", attendance.ClearError)
	att.DELETE("/notification-error", attendance.ClearNotificationError)
	att.DELETE("/message", attendance.ClearMessage)
	att.DELETE("/session", attendance.DiscardSession)

	att.GET("/dates", history.Dates)
	att.GET("/dates/stream", history.StreamDates)
	att.GET("/dates/:date", history.Day)
	att.GET("/dates/:date/stream", history.StreamDay)
	att.GET("/dates/:date/export", history.Export)

	st := api.Group("/students")
	st.GET("", students.List)
	st.GET("/stream", students.Stream)
	st.POST("", students.Create)
	st.GET("/:id", students.Get)
	st.PUT("/:id", students.Update)
	st.DELETE("/:id", students.Delete)
	st.GET("/:id/history", history.StudentHistory)
	st.GET("/:id/history/stream", history.StreamStudentHistory)
}

// newGateway builds the configured notification transport and its cleanup.
func newGateway(ctx context.Context, cfg config.NotifyConfig, logr *zap.Logger) (notify.Gateway, func(), error) {
	switch cfg.Transport {
	case config.TransportSMS:
		return notify.NewSMSGateway(cfg.SMS, nil, logr), func() {}, nil
	case config.TransportWhatsApp:
		gw, err := notify.NewWhatsAppGateway(ctx, cfg.WhatsApp, logr)
		if err != nil {
			return nil, nil, err
		}
		go func() {
			if err := gw.Connect(ctx); err != nil {
				logr.Error("whatsapp connect failed", zap.Error(err))
			}
		}()
		return gw, gw.Disconnect, nil
	case config.TransportLog, "":
		return notify.NewLogGateway(logr), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify transport %q", cfg.Transport)
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
