package target

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	ErrBadTarget       = errors.New("bad target")
	ErrNotFound        = errors.New("target not found")
	ErrEmptyName       = errors.New("target name is empty")
	ErrInvalidInterval = errors.New("interval out of range")
)

// DefaultInterval is the global probe cadence used until the user picks another one.
const DefaultInterval = 10 * time.Second

// MaxInterval caps both the global cadence and per-target overrides.
const MaxInterval = 24 * time.Hour

func ValidInterval(d time.Duration) bool { return d > 0 && d <= MaxInterval }

// IntervalFromMs converts a millisecond count from the outside world.
// Values outside (0, MaxInterval] fail with ErrInvalidInterval.
func IntervalFromMs(ms int64) (time.Duration, error) {
	if ms <= 0 || ms > MaxInterval.Milliseconds() {
		return 0, fmt.Errorf("%w: %dms", ErrInvalidInterval, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

type Target struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	// Interval overrides the global cadence when positive.
	Interval time.Duration `json:"interval,omitempty"`
}

// EffectiveInterval returns the override when set, otherwise global.
func (t Target) EffectiveInterval(global time.Duration) time.Duration {
	if t.Interval > 0 {
		return t.Interval
	}
	return global
}

func (t Target) HasOverride() bool { return t.Interval > 0 }

type Config struct {
	DefaultInterval      time.Duration `json:"default_interval"`
	NotificationsEnabled bool          `json:"notifications_enabled"`
}

func DefaultConfig() Config {
	return Config{DefaultInterval: DefaultInterval}
}

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL prepends https:// when the scheme is missing and reduces the
// result to scheme://host[:port].
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty url", ErrBadTarget)
	}
	if !schemeRe.MatchString(s) {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadTarget, err)
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", fmt.Errorf("%w: no host in %q", ErrBadTarget, raw)
	}
	if p := u.Port(); p == "" && strings.HasSuffix(u.Host, ":") {
		return "", fmt.Errorf("%w: empty port in %q", ErrBadTarget, raw)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}
