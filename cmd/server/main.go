package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rispay/internal/auth"
	"rispay/internal/config"
	"rispay/internal/handler"
	"rispay/internal/infrastructure/cache"
	"rispay/internal/infrastructure/database"
	"rispay/internal/infrastructure/lock"
	"rispay/internal/infrastructure/mq"
	"rispay/internal/job"
	"rispay/internal/logger"
	"rispay/pkg/idgen"
)

// 任务锁的过期时间，必须大于一次利息或通胀任务的最长耗时
const jobLockTTL = 30 * time.Minute

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器ID")
	flag.Parse()

	// 加载配置
	cfg := config.LoadConfig(*configPath)

	// 初始化 ID 生成器
	if err := idgen.Init(*workerID); err != nil {
		logger.Fatalf("初始化ID生成器失败: %v", err)
	}

	// 初始化数据库
	db, err := database.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("初始化数据库失败: %v", err)
	}

	// 任务防重入：有 Redis 用分布式锁，否则只在进程内互斥
	var guard lock.Guard = lock.NewLocalGuard()
	if cfg.Redis.Enabled {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Fatalf("初始化 Redis 失败: %v", err)
		}
		defer redisClient.Close()
		guard = lock.NewRedisGuard(redisClient, jobLockTTL)
	} else {
		logger.Warnf("Redis 未启用，任务锁仅在本进程内生效，不要多实例部署")
	}

	resolver, err := auth.NewTokenResolver(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatalf("初始化认证失败: %v", err)
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 通知投递
	if cfg.Kafka.Enabled {
		producer, err := mq.InitKafka(&cfg.Kafka)
		if err != nil {
			logger.Fatalf("初始化 Kafka 失败: %v", err)
		}
		defer producer.Close()

		outboxSender := job.NewOutboxSender(db, cfg, producer)
		go outboxSender.Start(ctx)
	} else {
		logger.Warnf("Kafka 未启用，通知事件只会保留在本地消息表中")
	}

	interestJob := job.NewInterestJob(db, cfg, guard)
	inflationJob := job.NewInflationJob(db, cfg, guard)

	// 月度任务：先通胀，再发利息
	if cfg.Jobs.Enabled {
		scheduler := job.NewMonthlyScheduler(cfg.Jobs.DayOfMonth, time.Local,
			job.Task{
				Name: job.InflationJobName,
				Hour: cfg.Jobs.InflationHour,
				Run: func(ctx context.Context) error {
					_, err := inflationJob.Run(ctx)
					return err
				},
			},
			job.Task{
				Name: job.InterestJobName,
				Hour: cfg.Jobs.InterestHour,
				Run: func(ctx context.Context) error {
					_, err := interestJob.Run(ctx)
					return err
				},
			},
		)
		go scheduler.Start(ctx)
	}

	// 设置路由
	h := handler.NewHandler(db, cfg, interestJob, inflationJob)
	router := handler.SetupRouter(h, resolver, cfg.Server.Mode)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("服务关闭异常: %v", err)
	}

	logger.Infof("服务已关闭")
}
