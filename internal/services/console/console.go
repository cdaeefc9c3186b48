// Package console renders the dashboard as a terminal table.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/NordCoder/pingboard/internal/domain/status"
	"github.com/NordCoder/pingboard/internal/domain/target"
	"github.com/NordCoder/pingboard/internal/services/monitor"
)

type Source interface {
	Statuses() []monitor.TargetStatus
	Config() target.Config
}

type Console struct {
	src     Source
	out     io.Writer
	refresh time.Duration
	color   bool
	clear   bool
}

func New(src Source, out io.Writer, refresh time.Duration, color bool) *Console {
	if refresh <= 0 {
		refresh = time.Second
	}
	return &Console{src: src, out: out, refresh: refresh, color: color, clear: color}
}

// Run redraws the table every refresh interval until ctx is done.
func (c *Console) Run(ctx context.Context) error {
	t := time.NewTicker(c.refresh)
	defer t.Stop()
	for {
		c.Render()
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (c *Console) Render() {
	if c.clear {
		fmt.Fprint(c.out, "\033[H\033[2J")
	}
	cfg := c.src.Config()

	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(fmt.Sprintf("pingboard  every %s  notifications %s", cfg.DefaultInterval, onOff(cfg.NotificationsEnabled)))
	tw.AppendHeader(table.Row{"Name", "URL", "Status", "Uptime", "Latency", "History", "Every"})

	for _, ts := range c.src.Statuses() {
		if !ts.Active {
			continue
		}
		row := table.Row{ts.Target.Name, ts.Target.URL, c.paint(status.Unknown, "UNKNOWN"), "-", "-", "", ts.Target.EffectiveInterval(cfg.DefaultInterval)}
		if r := ts.Record; r != nil {
			label := string(r.Status)
			if r.Paused {
				label += " (paused)"
			}
			row[2] = c.paint(r.Status, label)
			row[3] = fmt.Sprintf("%d%%", r.UptimePercent())
			if r.LastLatencyMs != nil {
				row[4] = fmt.Sprintf("%dms", *r.LastLatencyMs)
			}
			row[5] = Sparkline(r.History)
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

func (c *Console) paint(s status.Status, label string) string {
	if !c.color {
		return label
	}
	switch s {
	case status.Up:
		return text.FgGreen.Sprint(label)
	case status.Down:
		return text.FgRed.Sprint(label)
	default:
		return text.FgYellow.Sprint(label)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var bars = []rune("▁▂▃▄▅▆▇█")

// Sparkline scales latencies between the window min and max. Failed probes
// render as a dot.
func Sparkline(history []*int64) string {
	lo, hi := int64(-1), int64(-1)
	for _, v := range history {
		if v == nil {
			continue
		}
		if lo < 0 || *v < lo {
			lo = *v
		}
		if *v > hi {
			hi = *v
		}
	}
	var b strings.Builder
	for _, v := range history {
		if v == nil {
			b.WriteRune('·')
			continue
		}
		idx := 0
		if hi > lo {
			idx = int((*v - lo) * int64(len(bars)-1) / (hi - lo))
		}
		b.WriteRune(bars[idx])
	}
	return b.String()
}
