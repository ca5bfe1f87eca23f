// =============================================================================
// Skillhost default configuration
// =============================================================================
// Sensible defaults for every configuration value
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: DefaultServerConfig(),
		Bot:    DefaultBotConfig(),
		Skills: DefaultSkills(),
		State:  DefaultStateConfig(),
		Log:    DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        3978,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultBotConfig returns the default bot configuration.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		AppID:            "skillhost-root-bot",
		TargetSkillID:    "EchoSkillBot",
		CallbackEndpoint: "http://localhost:3978/api/skills",
		SkillTimeout:     30 * time.Second,
		SkillRetryCount:  3,
		SkillRetryDelay:  1 * time.Second,
		OutboxLimit:      200,
	}
}

// DefaultSkills returns the default skill list.
func DefaultSkills() []SkillConfig {
	return []SkillConfig{
		{
			ID:       "EchoSkillBot",
			AppID:    "echo-skill-bot",
			Endpoint: "http://localhost:39783/api/messages",
		},
	}
}

// DefaultStateConfig returns the default state store configuration.
func DefaultStateConfig() StateConfig {
	return StateConfig{
		Type:    "memory",
		BaseDir: "./data/state",
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "skillhost:",
		},
		SQLite: SQLiteConfig{
			Path: "./data/state/sessions.db",
		},
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}
