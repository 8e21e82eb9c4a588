// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// CurrentVersion is the config file schema version written by Save.
const CurrentVersion = 1

// AppConfig is the full daemon configuration. Field names double as YAML keys.
type AppConfig struct {
	Version  int    `yaml:"version"`
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`

	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Probe     ProbeConfig     `yaml:"probe"`
	Remote    RemoteConfig    `yaml:"remote"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	Blob      BlobConfig      `yaml:"blob"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	ListenAddr      string          `yaml:"listenAddr"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	IdleTimeout     time.Duration   `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	// MaxConnections caps concurrently accepted connections. 0 disables the cap.
	MaxConnections  int             `yaml:"maxConnections"`
	CORSOrigins     []string        `yaml:"corsOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// RPS is requests per second per client IP.
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// TokenConfig binds a bearer token to a viewer identity.
type TokenConfig struct {
	Token    string `yaml:"token"`
	ViewerID string `yaml:"viewerId"`
	Admin    bool   `yaml:"admin"`
}

type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
	// AllowAnonymous lets requests without a token through as anonymous viewers.
	AllowAnonymous bool `yaml:"allowAnonymous"`
}

type PlaybackConfig struct {
	GraceWindow         time.Duration `yaml:"graceWindow"`
	VisibilityThreshold float64       `yaml:"visibilityThreshold"`
	AutoplayOnVisible   bool          `yaml:"autoplayOnVisible"`
}

type SessionsConfig struct {
	MaxSessions   int           `yaml:"maxSessions"`
	MaxPerViewer  int           `yaml:"maxPerViewer"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type ProbeConfig struct {
	FFprobeBin string        `yaml:"ffprobeBin"`
	Timeout    time.Duration `yaml:"timeout"`
}

type RemoteConfig struct {
	MessagesPerSecond float64       `yaml:"messagesPerSecond"`
	Burst             int           `yaml:"burst"`
	PingInterval      time.Duration `yaml:"pingInterval"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
}

type CatalogConfig struct {
	// Store is "sqlite" or "memory".
	Store         string        `yaml:"store"`
	Path          string        `yaml:"path"`
	MaxStaleness  time.Duration `yaml:"maxStaleness"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
	PresignExpiry time.Duration `yaml:"presignExpiry"`

	// BreakerThreshold consecutive remote failures open the breaker for
	// BreakerReset.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend         string        `yaml:"backend"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	Redis           RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type BlobConfig struct {
	Origin   string `yaml:"origin"`
	MaxBytes int64  `yaml:"maxBytes"`
}

type StorageConfig struct {
	Endpoint       string `yaml:"endpoint"`
	PublicEndpoint string `yaml:"publicEndpoint"`
	Bucket         string `yaml:"bucket"`
	AccessKey      string `yaml:"accessKey"`
	SecretKey      string `yaml:"secretKey"`
	Region         string `yaml:"region"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is "grpc" or "http".
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"serviceName"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}
