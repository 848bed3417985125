package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamevault/internal/chain"
	"gamevault/internal/config"
	"gamevault/internal/handler"
	"gamevault/internal/infrastructure/cache"
	"gamevault/internal/infrastructure/database"
	"gamevault/internal/infrastructure/mq"
	"gamevault/internal/job"
	"gamevault/pkg/idgen"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化提现签名器（私钥只从环境变量读）
	signer, err := chain.NewSigner(config.SignerPrivateKey(), cfg.Chain.VaultAddress)
	if err != nil {
		log.Fatalf("初始化签名器失败: %v", err)
	}
	log.WithField("signer", signer.Address().Hex()).Info("提现签名器就绪")

	// 初始化链查询客户端
	chainClient, err := chain.NewClient(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("初始化链客户端失败: %v", err)
	}
	defer chainClient.Close()

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	claimReconciler := job.NewClaimReconciler(db, signer, cfg)
	go claimReconciler.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg, signer, chainClient)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("服务关闭异常: %v", err)
	}

	log.Info("服务已关闭")
}
