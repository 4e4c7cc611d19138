package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qp-spc/internal/cache"
	"qp-spc/internal/config"
	"qp-spc/internal/database"
	httpapi "qp-spc/internal/http"
	"qp-spc/internal/logger"
	"qp-spc/internal/metrics"
	"qp-spc/internal/notify"
	"qp-spc/internal/repository"
	"qp-spc/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var characteristicsFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SPC HTTP API and the due-time poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(characteristicsFile)
		},
	}
	cmd.Flags().StringVar(&characteristicsFile, "characteristics", "", "YAML file with control plan characteristics (memory backend)")
	return cmd
}

// stores 按存储后端组装的仓库
type stores struct {
	dna             repository.DnaRecordStore
	characteristics repository.CharacteristicRepository
	samples         repository.SampleRepository
}

// redisStores DNA 记录在 Redis，控制计划与样本仍在 PostgreSQL
func redisStores(db *sql.DB, client *redis.Client, keyPrefix string, log *zap.Logger) stores {
	return stores{
		dna:             cache.NewRedisDnaStore(client, keyPrefix, log),
		characteristics: repository.NewPostgresCharacteristicRepository(db, log),
		samples:         repository.NewPostgresSampleRepository(db, log),
	}
}

func runServe(characteristicsFile string) error {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	// 4. 存储
	var db *sql.DB
	var redisClient *redis.Client
	defer func() {
		if db != nil {
			_ = database.Close(db)
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	openDB := func() (*sql.DB, error) {
		if db != nil {
			return db, nil
		}
		conn, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
		db = conn
		return db, nil
	}
	openRedis := func() (*redis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		client := cache.NewRedisClient(&cfg.Redis)
		if err := cache.Ping(ctx, client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = client
		return redisClient, nil
	}

	var st stores
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		conn, err := openDB()
		if err != nil {
			return err
		}
		st = stores{
			dna:             repository.NewPostgresDnaStore(conn, log),
			characteristics: repository.NewPostgresCharacteristicRepository(conn, log),
			samples:         repository.NewPostgresSampleRepository(conn, log),
		}
	case config.BackendRedis:
		conn, err := openDB()
		if err != nil {
			return err
		}
		client, err := openRedis()
		if err != nil {
			return err
		}
		st = redisStores(conn, client, cfg.SPC.DnaKeyPrefix, log)
	default:
		chars := repository.NewMemoryCharacteristicRepository()
		if characteristicsFile != "" {
			loaded, err := loadCharacteristics(characteristicsFile)
			if err != nil {
				return err
			}
			for _, c := range loaded {
				chars.Put(c)
			}
			log.Info("Characteristics loaded",
				zap.String("file", characteristicsFile),
				zap.Int("count", len(loaded)),
			)
		}
		st = stores{
			dna:             repository.NewMemoryDnaStore(log),
			characteristics: chars,
			samples:         repository.NewMemorySampleRepository(),
		}
	}

	// 5. 事件流（失败时只告警，不阻止启动）
	var events service.EventPublisher
	if cfg.SPC.SampleStream != "" {
		client, err := openRedis()
		if err != nil {
			log.Warn("Sample stream disabled", zap.Error(err))
		} else {
			events = cache.NewStreamPublisher(client, cfg.SPC.SampleStream, 10000)
		}
	}

	// 6. 报警
	var notifier service.Notifier = notify.NopNotifier{}
	var mqttHealth httpapi.ConnectionChecker
	if cfg.MQTT.Enabled {
		client, err := notify.NewMQTTClient(&cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer client.Disconnect()
		mqttHealth = client
		notifier = notify.NewMQTTNotifier(client, cfg.SPC.AlertTopic, cfg.MQTT.QoS, log)
	}

	// 7. 服务
	sampleService := service.NewSampleService(st.characteristics, st.dna, st.samples, events, notifier, m, log)
	dashboard := service.NewDashboardService(st.dna, st.samples, cfg.SPC.SeriesLimit, log)
	poller := service.NewDuePoller(st.dna, notifier, m, time.Duration(cfg.SPC.DuePollInterval)*time.Second, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes(mqttHealth)
	router.RegisterSPCRoutes(httpapi.NewSPCHandler(sampleService, dashboard, log))
	router.HandleHandler("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 8. 启动
	errChan := make(chan error, 2)
	go func() {
		if err := poller.Start(ctx); err != nil {
			errChan <- err
		}
	}()
	go func() {
		log.Info("HTTP server listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("backend", cfg.Store.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// 9. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case runErr = <-errChan:
		log.Error("Service error", zap.Error(runErr))
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("SPC service stopped")
	return runErr
}
