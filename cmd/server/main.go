package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"grain_store/internal/auth"
	"grain_store/internal/config"
	"grain_store/internal/hub"
	"grain_store/internal/lifecycle"
	"grain_store/internal/model"
	"grain_store/internal/queue"
	"grain_store/internal/router"
	"grain_store/internal/store"
	"grain_store/internal/throttle"
	rediskey "grain_store/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 1. 连接 SQLite，自动建表并灌入默认目录
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&model.Product{}, &model.Customer{}, &model.Order{}, &model.StatusLog{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	products := store.NewProductStore(db)
	if err := products.SeedDefaults(); err != nil {
		log.Fatalf("seed products: %v", err)
	}
	orders := store.NewOrderStore(db)
	customers := store.NewCustomerStore(db)

	// 2. Redis：发号器（冷启动从已持久化的最大订单号续号）与取消窗口
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seq := rediskey.NewSequencer(rdb)
	maxToken, err := orders.MaxTokenNumber()
	if err != nil {
		log.Fatalf("max token: %v", err)
	}
	if err := seq.Seed(ctx, maxToken); err != nil {
		log.Fatalf("seed sequencer: %v", err)
	}

	th := throttle.New(rdb, cfg.CancelWindow, cfg.CancelLimit)
	gate := auth.NewGate(cfg.JWTSecret, cfg.JWTTTL)
	h := hub.New()

	// 3. 状态事件审计链路：outbox -> relay -> Kafka -> status_logs
	outbox := queue.NewOutbox(rdb, cfg.StatusEventStream)
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, cfg.StatusEventStream, cfg.StatusEventGroup, cfg.StatusEventConsumer)
	go relay.Run(ctx)
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db)
	defer consumer.Close()
	go consumer.Run(ctx)

	svc := lifecycle.NewService(products, orders, seq, th, h, outbox)

	r := gin.Default()
	router.Setup(r, router.Deps{
		RDB:       rdb,
		Gate:      gate,
		Service:   svc,
		Products:  products,
		Customers: customers,
		Hub:       h,
		Cfg:       cfg,
	})

	log.Printf("Grain Store API listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
