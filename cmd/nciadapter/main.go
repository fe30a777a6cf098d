package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/nciadapter/nciadapter/internal/adapter"
	"github.com/nciadapter/nciadapter/internal/api"
	"github.com/nciadapter/nciadapter/internal/api/middleware"
	"github.com/nciadapter/nciadapter/internal/config"
	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/health"
	"github.com/nciadapter/nciadapter/internal/logger"
	"github.com/nciadapter/nciadapter/internal/metrics"
	"github.com/nciadapter/nciadapter/internal/nci"
	"github.com/nciadapter/nciadapter/internal/security"
	"github.com/nciadapter/nciadapter/internal/storage"
	"github.com/nciadapter/nciadapter/internal/telemetry"
	"github.com/nciadapter/nciadapter/internal/websocket"
)

var Version = "0.1.0"

func main() {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║       nciadapter v%-18s ║\n", Version)
	fmt.Println("║   NCI adapter core management gateway  ║")
	fmt.Println("╚═══════════════════════════════════════╝")

	cfg, err := config.Load(getEnv("NCIADAPTER_CONFIG", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logger.Level
	logCfg.Format = cfg.Logger.Format
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	config.WatchLogLevel()
	log := logger.Get()
	defer logger.Sync()

	m := metrics.NewMetrics()
	if influxURL := getEnv("NCIADAPTER_INFLUX_URL", ""); influxURL != "" {
		exporter, err := metrics.NewInfluxExporter(metrics.InfluxExportConfig{
			URL:           influxURL,
			Token:         getEnv("NCIADAPTER_INFLUX_TOKEN", ""),
			Org:           getEnv("NCIADAPTER_INFLUX_ORG", ""),
			Bucket:        getEnv("NCIADAPTER_INFLUX_BUCKET", ""),
			FlushInterval: 30 * time.Second,
		}, m)
		if err != nil {
			log.Warn("influx exporter disabled", zap.Error(err))
		} else {
			go exporter.Run()
			defer exporter.Stop()
		}
	}

	rawStore, err := storage.New(cfg.ToStorageConfig())
	if err != nil {
		log.Fatal("failed to init param store", zap.Error(err))
	}
	encSvc := security.NewEncryptionService(getEnv("NCIADAPTER_ENCRYPTION_PASSWORD", "nciadapter-change-in-production"))
	paramStore := storage.NewEncryptingParamStore(rawStore, encSvc)

	wsHub := websocket.NewHub()
	go wsHub.Run()
	logger.SetBroadcaster(func(level, message, source string, fields map[string]interface{}) {
		wsHub.Broadcast(websocket.MessageTypeLog, map[string]interface{}{
			"level":   level,
			"message": message,
			"source":  source,
			"fields":  fields,
		})
	})

	sinks := setupTelemetrySinks(cfg, log)
	defer closeSinks(sinks)

	if err := startS3Archive(paramStore, log); err != nil {
		log.Warn("activation-log archival disabled", zap.Error(err))
	}

	redisCache := setupRedisCache(log)
	if redisCache != nil {
		defer redisCache.Close()
	}

	// nci.Core and framework.Framework are ports (spec Non-goals: no NCI
	// protocol decoding, no tag-content decoding, no LLCP implementation).
	// The mock implementations stand in for a real controller/framework
	// stack; the physical link itself is still owned by SerialTransport
	// below, independent of the in-memory Core driving the state machine.
	core := nci.NewMockCore()
	fw := framework.NewMockFramework()

	transport := nci.NewSerialTransport(nci.SerialTransportConfig{
		Port:       cfg.Transport.Port,
		BaudRate:   cfg.Transport.BaudRate,
		ResetPin:   cfg.Transport.ResetPin,
		ResetPulse: cfg.Transport.ResetPulse,
	})
	if cfg.Transport.ResetPin != "" {
		if err := transport.Open(); err != nil {
			log.Warn("serial transport unavailable, continuing without a physical reset line", zap.Error(err))
		} else {
			defer transport.Close()
		}
	}

	notifier := newEventNotifier(wsHub, m, sinks, log)
	a := adapter.NewAdapter(core, fw, log, notifier)
	a.Start()
	defer a.Stop()

	service := api.NewService(a, paramStore, wsHub)
	defer service.Close()
	handler := api.NewHandler(service, wsHub)

	activity := &activityTracker{}
	checker := buildHealthChecker(core, activity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	checker.StartPeriodicChecks(ctx)
	go runShadowLoop(ctx, a, service, cfg.Telemetry.DeviceID, encSvc, sinks, activity, redisCache, log)

	app := fiber.New(fiber.Config{AppName: "nciadapter v" + Version})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(metrics.MetricsMiddleware(m))

	app.Get("/metrics", func(c *fiber.Ctx) error {
		m.UpdateSystemMetrics()
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(m.PrometheusFormat())
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": checker.GetOverallStatus(),
			"checks": checker.GetCheckResults(),
		})
	})

	jwtConfig := middleware.JWTConfig{
		SecretKey:  cfg.API.JWTSecret,
		Issuer:     cfg.API.JWTIssuer,
		Expiration: cfg.API.JWTExpiration,
	}
	api.SetupRoutes(app, handler, jwtConfig)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("server starting", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	_ = app.ShutdownWithTimeout(5 * time.Second)
}

// buildHealthChecker wires the spec's health surface: NCI link liveness
// (the mock Core has no real link-down condition so this stands in for a
// real controller's heartbeat), goroutine-count ceiling sized from the
// detected deployment profile, and activation staleness.
func buildHealthChecker(core *nci.MockCore, activity *activityTracker) *health.HealthChecker {
	checker := health.NewHealthChecker()
	profile := config.GetDefaultProfiles()[config.DetectProfile()]

	checker.RegisterCheck("nci_link", health.NCILinkHealthCheck(func() bool {
		return core != nil
	}), 30*time.Second)

	checker.RegisterCheck("goroutines", health.GoroutineHealthCheck(runtime.NumGoroutine, profile.MaxGoroutines), 30*time.Second)

	checker.RegisterCheck("last_activation", health.LastActivationAgeHealthCheck(activity.Last, 10*time.Minute), time.Minute)

	return checker
}

// setupTelemetrySinks wires the telemetry.EventSink implementations the
// deployment opted into: the cloud Bridge via Config.Telemetry, and an
// MQTT publisher gated by an env var since MQTTPublisherConfig has no
// Config section of its own (an MQTT broker is a fleet-optional extra,
// not part of the adapter's core deployment surface).
func setupTelemetrySinks(cfg *config.Config, log *zap.Logger) []telemetry.EventSink {
	var sinks []telemetry.EventSink

	if cfg.Telemetry.Enabled {
		bridge := telemetry.NewBridge(&telemetry.Config{
			Enabled:              cfg.Telemetry.Enabled,
			ServerURL:            cfg.Telemetry.ServerURL,
			DeviceID:             cfg.Telemetry.DeviceID,
			APIKey:               cfg.Telemetry.APIKey,
			HeartbeatInterval:    cfg.Telemetry.HeartbeatInterval,
			MaxReconnectAttempts: cfg.Telemetry.MaxReconnectAttempts,
			EnableTLS:            cfg.Telemetry.EnableTLS,
		}, log)
		if err := bridge.Start(); err != nil {
			log.Warn("telemetry bridge failed to start", zap.Error(err))
		} else {
			sinks = append(sinks, bridge)
		}
	}

	if broker := getEnv("NCIADAPTER_MQTT_BROKER", ""); broker != "" {
		publisher := telemetry.NewMQTTPublisher(telemetry.MQTTPublisherConfig{
			Broker: broker,
			Topic:  getEnv("NCIADAPTER_MQTT_TOPIC", "nciadapter/events"),
		}, log)
		if err := publisher.Connect(); err != nil {
			log.Warn("mqtt publisher failed to connect", zap.Error(err))
		} else {
			sinks = append(sinks, publisher)
		}
	}

	return sinks
}

func closeSinks(sinks []telemetry.EventSink) {
	for _, sink := range sinks {
		if closer, ok := sink.(interface{ Close() error }); ok {
			_ = closer.Close()
		} else if stopper, ok := sink.(interface{ Stop() error }); ok {
			_ = stopper.Stop()
		}
	}
}

// setupRedisCache, when NCIADAPTER_REDIS_ADDR is set, connects the shared
// last-seen cache a multi-reader gateway deployment uses for diagnostics
// (storage.RedisActivationCache doc comment). Like the MQTT/S3 sinks, it
// has no Config section of its own: a second reader process is a fleet
// topology choice, not part of this adapter instance's own deployment surface.
func setupRedisCache(log *zap.Logger) *storage.RedisActivationCache {
	addr := getEnv("NCIADAPTER_REDIS_ADDR", "")
	if addr == "" {
		return nil
	}
	cache, err := storage.NewRedisActivationCache(storage.RedisActivationCacheConfig{
		Addr:      addr,
		Password:  getEnv("NCIADAPTER_REDIS_PASSWORD", ""),
		TTL:       24 * time.Hour,
		KeyPrefix: "nciadapter",
	})
	if err != nil {
		log.Warn("redis last-seen cache disabled", zap.Error(err))
		return nil
	}
	return cache
}

// startS3Archive, when NCIADAPTER_S3_BUCKET is set, periodically uploads
// the activation audit log to S3 (ModulesConfig.RemoteArchive). It has no
// Config section of its own for the same reason telemetry's MQTT sink
// doesn't: it's an opt-in fleet extra, not core deployment surface.
func startS3Archive(paramStore storage.ParamStore, log *zap.Logger) error {
	bucket := getEnv("NCIADAPTER_S3_BUCKET", "")
	if bucket == "" {
		return nil
	}

	archive, err := storage.NewS3Archive(storage.S3ArchiveConfig{
		Region:    getEnv("NCIADAPTER_S3_REGION", "us-east-1"),
		AccessKey: getEnv("NCIADAPTER_S3_ACCESS_KEY", ""),
		SecretKey: getEnv("NCIADAPTER_S3_SECRET_KEY", ""),
		Bucket:    bucket,
		Prefix:    getEnv("NCIADAPTER_S3_PREFIX", "nciadapter"),
	})
	if err != nil {
		return fmt.Errorf("init s3 archive: %w", err)
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			records, err := paramStore.ListActivations(1000)
			if err != nil {
				log.Warn("s3 archive: failed to list activations", zap.Error(err))
				continue
			}
			if len(records) == 0 {
				continue
			}
			key, err := archive.UploadActivationLog(context.Background(), records)
			if err != nil {
				log.Warn("s3 archive: upload failed", zap.Error(err))
				continue
			}
			log.Info("s3 archive: activation log uploaded", zap.String("key", key))
		}
	}()
	return nil
}
