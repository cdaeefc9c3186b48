package pingboard_config

import (
	"time"

	"github.com/NordCoder/pingboard/internal/obs"
	pginfra "github.com/NordCoder/pingboard/internal/repository/postgres"
)

type LogCfg struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Pretty     bool   `mapstructure:"pretty"`
	Env        string `mapstructure:"env"`
	Version    string `mapstructure:"version"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

func (l LogCfg) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:      l.Level,
		Pretty:     l.Pretty,
		App:        "pingboard",
		Env:        l.Env,
		Ver:        l.Version,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

type OTELCfg struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" validate:"required_if=Enable true"`
	Insecure     bool    `mapstructure:"insecure"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// AsOTELConfig tags spans with the same env and version the logger reports.
func (o OTELCfg) AsOTELConfig(l LogCfg) *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      o.Enable,
		Endpoint:    o.OTLPEndpoint,
		Insecure:    o.Insecure,
		ServiceName: o.ServiceName,
		Version:     l.Version,
		Env:         l.Env,
		SampleRatio: o.SampleRatio,
	}
}

type DBCfg struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
}

func (d DBCfg) AsPoolConfig() pginfra.Config {
	return pginfra.Config{
		URL:               d.DSN,
		MaxConns:          d.MaxConns,
		MinConns:          d.MinConns,
		MaxConnLifetime:   d.MaxConnLifetime,
		MaxConnIdleTime:   d.MaxConnIdleTime,
		HealthCheckPeriod: d.HealthCheckPeriod,
		QueryTimeout:      d.QueryTimeout,
	}
}

type StoreCfg struct {
	Kind       string `mapstructure:"kind" validate:"oneof=file sqlite postgres memory"`
	Path       string `mapstructure:"path" validate:"required_if=Kind file"`
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Kind sqlite"`
	Migrate    bool   `mapstructure:"migrate"`
	DB         DBCfg  `mapstructure:"db"`
}

type ProbeCfg struct {
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent       string        `mapstructure:"user_agent"`
	Path            string        `mapstructure:"path" validate:"omitempty,startswith=/"`
	CacheBust       bool          `mapstructure:"cache_bust"`
	StrictStatus    bool          `mapstructure:"strict_status"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
}

type MonitorCfg struct {
	DefaultInterval time.Duration `mapstructure:"default_interval" validate:"gt=0,lte=24h"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout" validate:"gt=0"`
}

type SMTPCfg struct {
	Addr       string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	From       string        `mapstructure:"from" validate:"omitempty,email"`
	To         []string      `mapstructure:"to" validate:"omitempty,dive,email"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subject_prefix"`
}

type NotifyCfg struct {
	Log          bool    `mapstructure:"log"`
	SlackWebhook string  `mapstructure:"slack_webhook" validate:"omitempty,url,http_protocol"`
	SMTP         SMTPCfg `mapstructure:"smtp"`
}

type KafkaCfg struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enable true"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enable true"`
}

type APICfg struct {
	Addr         string   `mapstructure:"addr"`
	AdminKeyHash string   `mapstructure:"admin_key_hash"`
	RateLimit    float64  `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst    int      `mapstructure:"rate_burst" validate:"gte=0"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type ServerCfg struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type ConsoleCfg struct {
	Enable  bool          `mapstructure:"enable"`
	Refresh time.Duration `mapstructure:"refresh" validate:"required_if=Enable true"`
}

type Config struct {
	Log     LogCfg     `mapstructure:"log"`
	OTEL    OTELCfg    `mapstructure:"otel"`
	Store   StoreCfg   `mapstructure:"store"`
	Probe   ProbeCfg   `mapstructure:"probe"`
	Monitor MonitorCfg `mapstructure:"monitor"`
	Notify  NotifyCfg  `mapstructure:"notify"`
	Kafka   KafkaCfg   `mapstructure:"kafka"`
	API     APICfg     `mapstructure:"api"`
	Server  ServerCfg  `mapstructure:"server"`
	Console ConsoleCfg `mapstructure:"console"`
}
