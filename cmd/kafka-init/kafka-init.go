package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/pingboard/internal/config/pingboard"
	"github.com/NordCoder/pingboard/internal/obs"
	"github.com/NordCoder/pingboard/internal/repository/kafka"
)

func main() {
	cfgPath := flag.String("config", "config/pingboard.yaml", "path to the YAML config")
	partitions := flag.Int("partitions", 1, "partitions for a new topic")
	rf := flag.Int("rf", 1, "replication factor for a new topic")
	wait := flag.Duration("wait", 30*time.Second, "how long to wait for partition leaders")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	l, _, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *wait+10*time.Second)
	defer cancel()

	err = kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, kafka.TopicSpec{
		Name:              cfg.Kafka.Topic,
		NumPartitions:     *partitions,
		ReplicationFactor: *rf,
		MaxWait:           *wait,
	}, l)
	if err != nil {
		l.Fatal("ensure topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}
	l.Info("kafka-init ok", zap.String("topic", cfg.Kafka.Topic))
}
