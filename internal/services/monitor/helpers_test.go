package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/pingboard/internal/domain/probe"
	"github.com/NordCoder/pingboard/internal/domain/status"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	never   = time.Hour
)

// scriptProber counts calls per url and can hold probes until released.
// With ignoreCancel a held probe only returns on release.
type scriptProber struct {
	mu           sync.Mutex
	calls        map[string]int
	seq          []string
	block        chan struct{}
	started      chan string
	next         func(url string, n int) probe.Result
	ignoreCancel bool
}

func newScriptProber() *scriptProber {
	return &scriptProber{calls: make(map[string]int), started: make(chan string, 64)}
}

func (p *scriptProber) hold() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.block = make(chan struct{})
	return p.block
}

func (p *scriptProber) Probe(ctx context.Context, url string, _ time.Duration) probe.Result {
	p.mu.Lock()
	p.calls[url]++
	p.seq = append(p.seq, url)
	n := p.calls[url]
	block := p.block
	next := p.next
	ignoreCancel := p.ignoreCancel
	p.mu.Unlock()

	select {
	case p.started <- url:
	default:
	}
	if block != nil && ignoreCancel {
		<-block
	} else if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return probe.Down(ctx.Err(), time.Now())
		}
	}
	if next != nil {
		return next(url, n)
	}
	return upMs(10)
}

func (p *scriptProber) sequence() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seq...)
}

func (p *scriptProber) count(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[url]
}

type updateLog struct {
	mu  sync.Mutex
	all []status.Update
}

func (l *updateLog) add(u status.Update) {
	l.mu.Lock()
	l.all = append(l.all, u)
	l.mu.Unlock()
}

func (l *updateLog) list() []status.Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]status.Update(nil), l.all...)
}

func (l *updateLog) transitions() []status.Transition {
	var out []status.Transition
	for _, u := range l.list() {
		if u.Transition != nil {
			out = append(out, *u.Transition)
		}
	}
	return out
}

func totalOf(tr *Tracker, id string) uint64 {
	rec, ok := tr.Get(id)
	if !ok {
		return 0
	}
	return rec.TotalCount
}
