package kafka

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrTopicNotReady = errors.New("topic not ready in time")

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

// EnsureTopic creates the topic through the controller and waits until every
// partition has a leader. An existing topic is not an error.
func EnsureTopic(ctx context.Context, brokers []string, ts TopicSpec, log *zap.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if ts.NumPartitions <= 0 {
		ts.NumPartitions = 1
	}
	if ts.ReplicationFactor <= 0 {
		ts.ReplicationFactor = 1
	}
	if ts.MaxWait <= 0 {
		ts.MaxWait = 5 * time.Second
	}
	log = log.With(zap.String("topic", ts.Name))

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.Warn("kafka dial failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Warn("kafka controller lookup failed", zap.Error(err))
		return err
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Warn("kafka controller dial failed", zap.Error(err))
		return err
	}
	defer cc.Close()

	if err := cc.CreateTopics(kafka.TopicConfig{
		Topic:             ts.Name,
		NumPartitions:     ts.NumPartitions,
		ReplicationFactor: ts.ReplicationFactor,
	}); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		log.Debug("create topic failed", zap.Error(err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, ts.MaxWait)
	defer cancel()
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for {
		if ps, err := conn.ReadPartitions(ts.Name); err == nil && len(ps) > 0 && allHaveLeader(ps) {
			log.Info("topic ready", zap.Int("partitions", len(ps)))
			return nil
		}
		select {
		case <-waitCtx.Done():
			log.Warn("topic not confirmed ready in time")
			return ErrTopicNotReady
		case <-t.C:
		}
	}
}

func allHaveLeader(parts []kafka.Partition) bool {
	for _, p := range parts {
		if p.Leader.ID == -1 {
			return false
		}
	}
	return true
}
