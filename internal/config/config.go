// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() builds a Config populated with defaults.
//   - Load(ctx) layers a YAML file and DUELIST_* environment variables on top.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage backends understood by the service.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP admin listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// MaxScore is the inclusive upper bound of a participant score.
	MaxScore int `koanf:"max_score"`

	// BandWidth is the number of scores per rank band above the entry band.
	BandWidth int `koanf:"band_width"`

	// RankNames lists rank tiers from the entry tier upwards.
	RankNames []string `koanf:"rank_names"`

	// RefusalPenalty is deducted from a participant who refuses a duel.
	RefusalPenalty int `koanf:"refusal_penalty"`

	// LossPenalty is deducted from the loser of a duel.
	LossPenalty int `koanf:"loss_penalty"`

	// AnnounceInitialRank announces entry-tier acquisition like a promotion.
	AnnounceInitialRank bool `koanf:"announce_initial_rank"`

	// AllowConcurrentDuels lets one participant hold several pending duels
	// against different opponents.
	AllowConcurrentDuels bool `koanf:"allow_concurrent_duels"`

	// AllowThirdPartyRefusal lets non-participants (staff) refuse a duel and
	// take the penalty themselves.
	AllowThirdPartyRefusal bool `koanf:"allow_third_party_refusal"`

	// ResolvedCacheSize bounds the cache of recently resolved session IDs.
	ResolvedCacheSize int `koanf:"resolved_cache_size"`

	// DuelTTL cancels duels pending for longer than this. Zero disables it.
	DuelTTL time.Duration `koanf:"duel_ttl"`

	// StorageBackend selects memory, sqlite or redis.
	StorageBackend string `koanf:"storage_backend"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// RedisAddr, RedisDB and RedisPrefix configure the redis backend.
	RedisAddr   string `koanf:"redis_addr"`
	RedisDB     int    `koanf:"redis_db"`
	RedisPrefix string `koanf:"redis_prefix"`

	// NotifyWorkers and NotifyQueueSize size the notification pool.
	NotifyWorkers   int `koanf:"notify_workers"`
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// Discord integration. The bot is disabled when DiscordToken is empty.
	DiscordToken              string            `koanf:"discord_token"`
	DiscordAppID              string            `koanf:"discord_app_id"`
	DiscordGuildID            string            `koanf:"discord_guild_id"`
	DiscordChallengeChannelID string            `koanf:"discord_challenge_channel_id"`
	DiscordDuelsCategoryID    string            `koanf:"discord_duels_category_id"`
	DiscordStaffRoleIDs       []string          `koanf:"discord_staff_role_ids"`
	DiscordRankRoleIDs        map[string]string `koanf:"discord_rank_role_ids"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		MaxScore:             30,
		BandWidth:            5,
		RankNames:            []string{"Initiate", "Duelist", "Gladiator", "Champion", "Warlord", "Legend"},
		RefusalPenalty:       2,
		LossPenalty:          1,
		AllowConcurrentDuels: true,
		ResolvedCacheSize:    10_000,
		StorageBackend:       BackendSQLite,
		SQLitePath:           "data/duelist.db",
		RedisAddr:            "localhost:6379",
		RedisPrefix:          "duelist",
		NotifyWorkers:        4,
		NotifyQueueSize:      1024,
		DiscordRankRoleIDs:   map[string]string{},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxScore < 1:
		return fmt.Errorf("%w: max_score must be positive", ErrInvalidConfig)
	case c.BandWidth < 1:
		return fmt.Errorf("%w: band_width must be positive", ErrInvalidConfig)
	case len(c.RankNames) == 0:
		return fmt.Errorf("%w: rank_names must not be empty", ErrInvalidConfig)
	case c.RefusalPenalty < 0 || c.LossPenalty < 0:
		return fmt.Errorf("%w: penalties must not be negative", ErrInvalidConfig)
	case c.DuelTTL < 0:
		return fmt.Errorf("%w: duel_ttl must not be negative", ErrInvalidConfig)
	}
	switch c.StorageBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("%w: redis_addr must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage_backend %q", ErrInvalidConfig, c.StorageBackend)
	}
	for i, name := range c.RankNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: rank_names[%d] is empty", ErrInvalidConfig, i)
		}
	}
	return nil
}
