package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	https_server "Mano/api/http"
	"Mano/internal/config"
	"Mano/internal/modules/ai/infrastructure/mq"
	"Mano/internal/modules/ai/infrastructure/mq/kafka"
	"Mano/internal/modules/ai/infrastructure/queue"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()
	host := conf.MainConfig.Host
	port := conf.MainConfig.Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Kafka 配置齐全时启动 outbox relay 与向量化消费者
	var publisher mq.Publisher
	var consumer mq.Consumer
	if len(conf.KafkaConfig.Brokers) > 0 && conf.KafkaConfig.EmbedTopic != "" {
		if err := kafka.EnsureTopic(kafka.TopicAdminConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			ClientID: conf.KafkaConfig.ClientID,
		}, conf.KafkaConfig.EmbedTopic, conf.KafkaConfig.Partitions, conf.KafkaConfig.Replication); err != nil {
			zlog.Fatal("创建 Kafka topic 失败: " + err.Error())
		}

		var err error
		publisher, err = kafka.NewSaramaPublisher(kafka.PublisherConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("创建 Kafka producer 失败: " + err.Error())
		}

		consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			GroupID:  conf.KafkaConfig.ConsumerGroupID,
			Topics:   []string{conf.KafkaConfig.EmbedTopic},
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("创建 Kafka consumer 失败: " + err.Error())
		}

		relay := queue.NewOutboxRelay(https_server.EmbedEventRepo, publisher, conf.KafkaConfig.EmbedTopic, 200, 500*time.Millisecond)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("outbox relay 退出", zap.Error(err))
			}
		}()

		worker := queue.NewEmbedConsumerWorker(consumer, https_server.VectorSvc)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("向量化消费者退出", zap.Error(err))
			}
		}()
	} else {
		zlog.Info("Kafka 未配置，向量化走进程内兜底")
	}

	// 3. 启动 HTTP 服务
	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		zlog.Info(fmt.Sprintf("服务器正在启动，监听地址: %s", addr))
		// 目前使用 HTTP 启动。如果需要 HTTPS，请配置证书并使用 GE.RunTLS
		if err := https_server.GE.Run(addr); err != nil {
			zlog.Fatal("服务器启动失败: " + err.Error())
			return
		}
	}()

	// 4. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务器...")
	cancel()
	if consumer != nil {
		_ = consumer.Close()
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	zlog.Sync()
	zlog.Info("服务器已关闭")
}
