package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/duelist/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxScore, convey.ShouldEqual, 30)
				convey.So(cfg.StorageBackend, convey.ShouldEqual, config.BackendSQLite)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DUELIST_ADDR", ":8080")
			_ = os.Setenv("DUELIST_MAX_SCORE", "40")
			_ = os.Setenv("DUELIST_STORAGE_BACKEND", "memory")
			_ = os.Setenv("DUELIST_ANNOUNCE_INITIAL_RANK", "true")
			_ = os.Setenv("DUELIST_DUEL_TTL", "30m")
			_ = os.Setenv("DUELIST_DISCORD_STAFF_ROLE_IDS", "111,222")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MaxScore, convey.ShouldEqual, 40)
				convey.So(cfg.StorageBackend, convey.ShouldEqual, config.BackendMemory)
				convey.So(cfg.AnnounceInitialRank, convey.ShouldBeTrue)
				convey.So(cfg.DuelTTL, convey.ShouldEqual, 30*time.Minute)
				convey.So(cfg.DiscordStaffRoleIDs, convey.ShouldResemble, []string{"111", "222"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
max_score: 25
band_width: 4
rank_names: [Bronze, Silver, Gold]
allow_concurrent_duels: false
storage_backend: redis
redis_addr: "redis:6379"
discord_rank_role_ids:
  Bronze: "1001"
  Gold: "1003"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DUELIST_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.MaxScore, convey.ShouldEqual, 25)
				convey.So(cfg.BandWidth, convey.ShouldEqual, 4)
				convey.So(cfg.RankNames, convey.ShouldResemble, []string{"Bronze", "Silver", "Gold"})
				convey.So(cfg.AllowConcurrentDuels, convey.ShouldBeFalse)
				convey.So(cfg.StorageBackend, convey.ShouldEqual, config.BackendRedis)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.DiscordRankRoleIDs["Gold"], convey.ShouldEqual, "1003")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
max_score: 25
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DUELIST_CONFIG", tmpFile)
			_ = os.Setenv("DUELIST_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MaxScore, convey.ShouldEqual, 25)
				convey.So(cfg.BandWidth, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DUELIST_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("DUELIST_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("DUELIST_MAX_SCORE", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config that fails validation", func() {
			_ = os.Setenv("DUELIST_STORAGE_BACKEND", "cassandra")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"DUELIST_CONFIG",
		"DUELIST_ADDR",
		"DUELIST_MAX_SCORE",
		"DUELIST_STORAGE_BACKEND",
		"DUELIST_ANNOUNCE_INITIAL_RANK",
		"DUELIST_DUEL_TTL",
		"DUELIST_DISCORD_STAFF_ROLE_IDS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "duelist-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
