package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/NordCoder/pingboard/internal/domain/target"
)

// Key is the storage key the snapshot lives under.
const Key = "pingboard:v1"

const SchemaVersion = 1

var ErrInvalidFormat = errors.New("invalid snapshot format")

type Site struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	IntervalMs int64  `json:"intervalMs,omitempty"`
}

type Snapshot struct {
	SchemaVersion        int      `json:"schemaVersion"`
	IntervalMs           int64    `json:"intervalMs"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
	Sites                []Site   `json:"sites"`
	ActiveIDs            []string `json:"activeIds"`
}

func Default() Snapshot {
	return From(target.DefaultConfig(), nil, nil)
}

// From builds a snapshot of the registry state.
func From(cfg target.Config, targets []target.Target, activeIDs []string) Snapshot {
	s := Snapshot{
		SchemaVersion:        SchemaVersion,
		IntervalMs:           cfg.DefaultInterval.Milliseconds(),
		NotificationsEnabled: cfg.NotificationsEnabled,
		Sites:                make([]Site, 0, len(targets)),
		ActiveIDs:            append([]string{}, activeIDs...),
	}
	for _, t := range targets {
		s.Sites = append(s.Sites, Site{
			ID:         t.ID,
			Name:       t.Name,
			URL:        t.URL,
			IntervalMs: t.Interval.Milliseconds(),
		})
	}
	return s
}

func (s Snapshot) Config() target.Config {
	return target.Config{
		DefaultInterval:      time.Duration(s.IntervalMs) * time.Millisecond,
		NotificationsEnabled: s.NotificationsEnabled,
	}
}

func (s Snapshot) Targets() []target.Target {
	out := make([]target.Target, 0, len(s.Sites))
	for _, st := range s.Sites {
		out = append(out, target.Target{
			ID:       st.ID,
			Name:     st.Name,
			URL:      st.URL,
			Interval: time.Duration(st.IntervalMs) * time.Millisecond,
		})
	}
	return out
}

func Encode(s Snapshot) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// Decode parses and validates a blob. Any structural problem is ErrInvalidFormat.
func Decode(blob []byte) (Snapshot, error) {
	if !gjson.ValidBytes(blob) {
		return Snapshot{}, fmt.Errorf("%w: not json", ErrInvalidFormat)
	}
	doc := gjson.ParseBytes(blob)
	if !doc.IsObject() {
		return Snapshot{}, fmt.Errorf("%w: not an object", ErrInvalidFormat)
	}
	required := []struct {
		path string
		ok   func(gjson.Result) bool
	}{
		{"schemaVersion", func(r gjson.Result) bool { return r.Type == gjson.Number }},
		{"intervalMs", func(r gjson.Result) bool { return r.Type == gjson.Number }},
		{"sites", gjson.Result.IsArray},
		{"activeIds", gjson.Result.IsArray},
	}
	for _, f := range required {
		r := doc.Get(f.path)
		if !r.Exists() {
			return Snapshot{}, fmt.Errorf("%w: missing %s", ErrInvalidFormat, f.path)
		}
		if !f.ok(r) {
			return Snapshot{}, fmt.Errorf("%w: bad type for %s", ErrInvalidFormat, f.path)
		}
	}
	if v := doc.Get("schemaVersion").Int(); v != SchemaVersion {
		return Snapshot{}, fmt.Errorf("%w: schema version %d, want %d", ErrInvalidFormat, v, SchemaVersion)
	}

	var s Snapshot
	if err := json.Unmarshal(blob, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Validate checks cross-field invariants and normalizes site URLs in place.
func (s *Snapshot) Validate() error {
	if _, err := target.IntervalFromMs(s.IntervalMs); err != nil {
		return fmt.Errorf("%w: intervalMs: %v", ErrInvalidFormat, err)
	}
	seen := make(map[string]struct{}, len(s.Sites))
	for i := range s.Sites {
		st := &s.Sites[i]
		if st.ID == "" {
			return fmt.Errorf("%w: site %d has no id", ErrInvalidFormat, i)
		}
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("%w: duplicate site id %q", ErrInvalidFormat, st.ID)
		}
		seen[st.ID] = struct{}{}
		if st.IntervalMs != 0 {
			if _, err := target.IntervalFromMs(st.IntervalMs); err != nil {
				return fmt.Errorf("%w: site %q: %v", ErrInvalidFormat, st.ID, err)
			}
		}
		u, err := target.NormalizeURL(st.URL)
		if err != nil {
			return fmt.Errorf("%w: site %q: %v", ErrInvalidFormat, st.ID, err)
		}
		st.URL = u
	}
	active := make(map[string]struct{}, len(s.ActiveIDs))
	for _, id := range s.ActiveIDs {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("%w: active id %q has no site", ErrInvalidFormat, id)
		}
		if _, dup := active[id]; dup {
			return fmt.Errorf("%w: duplicate active id %q", ErrInvalidFormat, id)
		}
		active[id] = struct{}{}
	}
	return nil
}
