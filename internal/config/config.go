package config

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string        `json:"log_level" yaml:"log_level"`
	Ingest   IngestConfig  `json:"ingest" yaml:"ingest"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	API      APIConfig     `json:"api" yaml:"api"`
	Roster   RosterConfig  `json:"roster" yaml:"roster"`
	Session  SessionConfig `json:"session" yaml:"session"`
}

type IngestConfig struct {
	ChannelBuffer int         `json:"channel_buffer" yaml:"channel_buffer"`
	Kafka         KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type StorageConfig struct {
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	Driver      string        `json:"driver" yaml:"driver"`
	DSN         string        `json:"dsn" yaml:"dsn"`
	QueueSize   int           `json:"queue_size" yaml:"queue_size"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay  time.Duration `json:"retry_delay" yaml:"retry_delay"`
	RecentLimit int           `json:"recent_limit" yaml:"recent_limit"`
}

type APIConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	Addr             string `json:"addr" yaml:"addr"`
	SubscriberBuffer int    `json:"subscriber_buffer" yaml:"subscriber_buffer"`
}

type RosterConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type SessionConfig struct {
	SyntheticInterval time.Duration `json:"synthetic_interval" yaml:"synthetic_interval"`
	FeedCapacity      int           `json:"feed_capacity" yaml:"feed_capacity"`
	AlertCapacity     int           `json:"alert_capacity" yaml:"alert_capacity"`
	AlertTokens       []string      `json:"alert_tokens" yaml:"alert_tokens"`
	LiveURL           string        `json:"live_url" yaml:"live_url"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			ChannelBuffer: 1024,
			Kafka: KafkaConfig{
				Enabled: true,
				Brokers: []string{"localhost:9092"},
				Topic:   "student-activity",
				GroupID: "classwatch-consumer",
			},
		},
		Storage: StorageConfig{
			Enabled:     false,
			Driver:      "sqlite",
			DSN:         "file:classwatch.db?_pragma=busy_timeout(5000)",
			QueueSize:   1024,
			MaxRetries:  5,
			RetryDelay:  200 * time.Millisecond,
			RecentLimit: 200,
		},
		API: APIConfig{
			Enabled:          true,
			Addr:             ":8080",
			SubscriberBuffer: 16,
		},
		Roster: RosterConfig{
			Enabled: false,
			Timeout: 5 * time.Second,
		},
		Session: SessionConfig{
			SyntheticInterval: 3 * time.Second,
			FeedCapacity:      200,
			AlertCapacity:     20,
			AlertTokens:       []string{"distract", "sleep", "phone"},
			LiveURL:           "ws://localhost:8080/ws/alerts",
		},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 1024
	}
	if cfg.Ingest.Kafka.Topic == "" {
		cfg.Ingest.Kafka.Topic = "student-activity"
	}
	if cfg.Ingest.Kafka.GroupID == "" {
		cfg.Ingest.Kafka.GroupID = "classwatch-consumer"
	}
	if cfg.Storage.QueueSize <= 0 {
		cfg.Storage.QueueSize = 1024
	}
	if cfg.Storage.MaxRetries <= 0 {
		cfg.Storage.MaxRetries = 5
	}
	if cfg.Storage.RetryDelay <= 0 {
		cfg.Storage.RetryDelay = 200 * time.Millisecond
	}
	if cfg.Storage.RecentLimit <= 0 {
		cfg.Storage.RecentLimit = 200
	}
	if cfg.API.SubscriberBuffer <= 0 {
		cfg.API.SubscriberBuffer = 16
	}
	if cfg.Roster.Timeout <= 0 {
		cfg.Roster.Timeout = 5 * time.Second
	}
	if cfg.Session.SyntheticInterval <= 0 {
		cfg.Session.SyntheticInterval = 3 * time.Second
	}
	if cfg.Session.FeedCapacity <= 0 {
		cfg.Session.FeedCapacity = 200
	}
	if cfg.Session.AlertCapacity <= 0 {
		cfg.Session.AlertCapacity = 20
	}
	if len(cfg.Session.AlertTokens) == 0 {
		cfg.Session.AlertTokens = []string{"distract", "sleep", "phone"}
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Storage.Enabled {
		driver := strings.ToLower(cfg.Storage.Driver)
		if driver != "sqlite" && driver != "postgres" && driver != "postgresql" {
			return errors.New("storage.driver must be sqlite or postgres")
		}
	}
	if cfg.Roster.Enabled && cfg.Roster.URL == "" {
		return errors.New("roster.url required when roster.enabled is true")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	if info, err := os.Stat(path); err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func NewManagerFromConfig(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	applyDefaults(cfg)
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
