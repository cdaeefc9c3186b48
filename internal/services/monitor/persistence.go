package monitor

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/snapshot"
	"github.com/NordCoder/pingboard/internal/obs/retry"
)

// persister keeps the registry snapshot in a key-value store.
// A nil store keeps everything in memory only.
type persister struct {
	store  snapshot.Store
	log    *zap.Logger
	policy retry.Policy
	m      *metrics
}

func newPersister(store snapshot.Store, log *zap.Logger, m *metrics) *persister {
	return &persister{
		store:  store,
		log:    log.With(zap.String("component", "monitor.persister")),
		policy: retry.StorePolicy(log),
		m:      m,
	}
}

// loadAll returns snapshot.ErrEmpty when nothing is stored and wraps
// snapshot.ErrInvalidFormat when the stored blob is unusable.
func (p *persister) loadAll(ctx context.Context) (snapshot.Snapshot, error) {
	if p.store == nil {
		return snapshot.Snapshot{}, snapshot.ErrEmpty
	}
	blob, err := p.store.Get(ctx, snapshot.Key)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	s, err := snapshot.Decode(blob)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s, nil
}

func (p *persister) saveAll(ctx context.Context, s snapshot.Snapshot) error {
	if p.store == nil {
		return nil
	}
	ctx, span := otel.Tracer("monitor.persister").Start(ctx, "snapshot.save")
	defer span.End()

	blob, err := snapshot.Encode(s)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("snapshot.bytes", len(blob)))
	err = retry.Do(ctx, func() error { return p.store.Put(ctx, snapshot.Key, blob) }, p.policy)
	if err != nil {
		p.m.saves.WithLabelValues("error").Inc()
		span.RecordError(err)
		return fmt.Errorf("save snapshot: %w", err)
	}
	p.m.saves.WithLabelValues("ok").Inc()
	return nil
}

func (p *persister) exportSnapshot(s snapshot.Snapshot) ([]byte, error) {
	return snapshot.Encode(s)
}

func (p *persister) importSnapshot(blob []byte) (snapshot.Snapshot, error) {
	return snapshot.Decode(blob)
}

func (p *persister) wipe(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.Delete(ctx, snapshot.Key); err != nil && !errors.Is(err, snapshot.ErrEmpty) {
		return fmt.Errorf("wipe snapshot: %w", err)
	}
	return nil
}
