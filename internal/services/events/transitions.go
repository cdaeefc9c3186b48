// Package events forwards status transitions to a message broker.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/pingboard/internal/domain/status"
	"github.com/NordCoder/pingboard/internal/domain/target"
	"github.com/NordCoder/pingboard/internal/obs/retry"
)

type Publisher interface {
	PublishProto(ctx context.Context, key []byte, m proto.Message) error
}

// Transitions queues transitions from the monitor and publishes them from a
// single goroutine. A full queue drops the event.
type Transitions struct {
	pub    Publisher
	reg    target.Registry
	log    *zap.Logger
	policy retry.Policy
	queue  chan event
}

type event struct {
	tr     status.Transition
	name   string
	origin string
}

func NewTransitions(pub Publisher, reg target.Registry, log *zap.Logger, buffer int) *Transitions {
	if log == nil {
		log = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	log = log.With(zap.String("component", "events.transitions"))
	return &Transitions{
		pub:    pub,
		reg:    reg,
		log:    log,
		policy: retry.KafkaPolicy(log),
		queue:  make(chan event, buffer),
	}
}

// Observe is a monitor subscriber. It never blocks.
func (t *Transitions) Observe(u status.Update) {
	if u.Transition == nil {
		return
	}
	ev := event{tr: *u.Transition}
	if tg, err := t.reg.Target(ev.tr.TargetID); err == nil {
		ev.name, ev.origin = tg.Name, tg.URL
	}
	select {
	case t.queue <- ev:
	default:
		t.log.Warn("transition queue full, dropping", zap.String("target_id", ev.tr.TargetID))
	}
}

// Run publishes queued transitions until ctx is done.
func (t *Transitions) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-t.queue:
			msg, err := Message(ev.tr, ev.name, ev.origin)
			if err != nil {
				t.log.Error("build event", zap.Error(err))
				continue
			}
			key := []byte(ev.tr.TargetID)
			err = retry.Do(ctx, func() error { return t.pub.PublishProto(ctx, key, msg) }, t.policy)
			if err != nil && ctx.Err() == nil {
				t.log.Warn("transition not published", zap.String("target_id", ev.tr.TargetID), zap.Error(err))
			}
		}
	}
}

// Message encodes a transition as a protobuf Struct.
func Message(tr status.Transition, name, origin string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"target_id": tr.TargetID,
		"name":      name,
		"url":       origin,
		"from":      string(tr.From),
		"to":        string(tr.To),
		"ts":        tr.At.UTC().Format(time.RFC3339Nano),
	})
}
