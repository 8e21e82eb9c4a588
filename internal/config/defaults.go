// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Default returns the configuration used when neither file nor environment
// say otherwise.
func Default() AppConfig {
	return AppConfig{
		Version:  CurrentVersion,
		DataDir:  "/var/lib/reelplay",
		LogLevel: "info",
		Server: ServerConfig{
			ListenAddr:      ":8088",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			MaxConnections:  1024,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Auth: AuthConfig{AllowAnonymous: true},
		Playback: PlaybackConfig{
			GraceWindow:         2 * time.Second,
			VisibilityThreshold: 0.5,
			AutoplayOnVisible:   true,
		},
		Sessions: SessionsConfig{
			MaxSessions:  1000,
			MaxPerViewer: 16,
			IdleTimeout:  10 * time.Minute,
		},
		Probe: ProbeConfig{
			FFprobeBin: "ffprobe",
			Timeout:    15 * time.Second,
		},
		Remote: RemoteConfig{
			MessagesPerSecond: 20,
			Burst:             40,
			PingInterval:      30 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		Catalog: CatalogConfig{
			Store:         "sqlite",
			MaxStaleness:  30 * time.Second,
			CacheTTL:      10 * time.Minute,
			PresignExpiry: 15 * time.Minute,

			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			CleanupInterval: time.Minute,
			Redis:           RedisConfig{KeyPrefix: "reelplay:"},
		},
		Blob: BlobConfig{
			Origin:   "https://reelplay.local",
			MaxBytes: 16 << 20,
		},
		Storage: StorageConfig{Region: "us-east-1"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			ServiceName:  "reelplay",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}
