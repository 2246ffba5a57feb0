package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/ctfboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config from a YAML file", func() {
			yamlContent := `
addr: ":9090"
board_cache_duration: 15s
score_normalization: 500
tiebreaker:
  max: 4000
  scores:
    - team: Th3g3ntl3man
      score: 3103
    - team: MemeDream
      score: 394
winners:
  overall: [Th3g3ntl3man]
  windows:
    - window: boole
      teams: [MemeDream]
metrics:
  namespace: pactf
  buckets: [1, 10, 100]
  labels:
    deployment: staging
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CTFBOARD_CONFIG_FILE", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.BoardCacheDuration, convey.ShouldEqual, 15*time.Second)
				convey.So(cfg.ScoreNormalization, convey.ShouldEqual, 500)
				convey.So(cfg.OverallCodename, convey.ShouldEqual, "overall")
				convey.So(cfg.Winners.TopOverallCount, convey.ShouldEqual, 3)
				convey.So(cfg.Winners.Overall, convey.ShouldResemble, []string{"Th3g3ntl3man"})
				convey.So(cfg.Winners.Windows, convey.ShouldHaveLength, 1)
				convey.So(cfg.Winners.Windows[0].Window, convey.ShouldEqual, "boole")
			})

			convey.Convey("Then the metrics section is read with defaults kept", func() {
				convey.So(cfg.Metrics.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Metrics.Namespace, convey.ShouldEqual, "pactf")
				convey.So(cfg.Metrics.Subsystem, convey.ShouldEqual, "boards")
				convey.So(cfg.Metrics.Buckets, convey.ShouldResemble, []float64{1, 10, 100})
				convey.So(cfg.Metrics.Labels, convey.ShouldResemble, map[string]string{"deployment": "staging"})
			})

			convey.Convey("Then the tiebreaker table is keyed by team", func() {
				convey.So(cfg.Tiebreaker.Table(), convey.ShouldResemble, map[string]int{
					"Th3g3ntl3man": 3103,
					"MemeDream":    394,
				})
			})
		})

		convey.Convey("When environment variables override the file", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nrefresh_workers: 2\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CTFBOARD_CONFIG_FILE", tmpFile)
			_ = os.Setenv("CTFBOARD_ADDR", ":7070")
			_ = os.Setenv("CTFBOARD_BOARD_CACHE_DURATION", "2m")
			_ = os.Setenv("CTFBOARD_TIEBREAKER_CODENAME", "tb")
			_ = os.Setenv("CTFBOARD_TIEBREAKER_MAX", "5000")
			_ = os.Setenv("CTFBOARD_SEED_TEAMS", "7")
			_ = os.Setenv("CTFBOARD_CORS_ORIGINS", "https://a.example,https://b.example")
			_ = os.Setenv("CTFBOARD_METRICS_NAMESPACE", "ctf_env")
			_ = os.Setenv("CTFBOARD_METRICS_SYSTEM_INTERVAL", "30s")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins and nested keys are mapped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.RefreshWorkers, convey.ShouldEqual, 2)
				convey.So(cfg.BoardCacheDuration, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.TiebreakerCodename, convey.ShouldEqual, "tb")
				convey.So(cfg.Tiebreaker.Max, convey.ShouldEqual, 5000)
				convey.So(cfg.Seed.Teams, convey.ShouldEqual, 7)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
				convey.So(cfg.Metrics.Namespace, convey.ShouldEqual, "ctf_env")
				convey.So(cfg.Metrics.SystemInterval, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When loading the shipped example config", func() {
			_ = os.Setenv("CTFBOARD_CONFIG_FILE", filepath.Join("..", "..", "configs", "ctfboard.example.yaml"))
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it is valid and carries the tiebreaker table", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Tiebreaker.Scores, convey.ShouldHaveLength, 13)
				convey.So(cfg.Tiebreaker.Table()["Th3g3ntl3man"], convey.ShouldEqual, 3103)
				convey.So(cfg.Singleflight, convey.ShouldBeTrue)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"*"})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CTFBOARD_CONFIG_FILE", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the named config file does not exist", func() {
			_ = os.Setenv("CTFBOARD_CONFIG_FILE", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an empty addr", func() {
			_ = os.Setenv("CTFBOARD_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CTFBOARD_REFRESH_WORKERS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("Then it is valid", func() {
			convey.So(cfg.Validate(ctx), convey.ShouldBeNil)
		})

		convey.Convey("When postgres is selected without a DSN", func() {
			cfg.Store = config.StorePostgres
			err := cfg.Validate(ctx)

			convey.Convey("Then the DSN is required", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "postgres_dsn")
			})
		})

		convey.Convey("When nats is selected without a URL", func() {
			cfg.Cache = config.CacheNATS
			err := cfg.Validate(ctx)

			convey.Convey("Then the URL is required", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "nats_url")
			})
		})

		convey.Convey("When the tiebreaker table is inconsistent", func() {
			cfg.Tiebreaker.Scores = []config.TiebreakerScore{
				{Team: "b1c", Score: 864},
				{Team: "b1c", Score: 10},
				{Team: "phsst", Score: 4001},
			}
			err := cfg.Validate(ctx)

			convey.Convey("Then every problem is reported", func() {
				convey.So(err.Error(), convey.ShouldContainSubstring, `"b1c" listed twice`)
				convey.So(err.Error(), convey.ShouldContainSubstring, `"phsst" outside [0, 4000]`)
			})
		})

		convey.Convey("When both board codenames are equal", func() {
			cfg.TiebreakerCodename = cfg.OverallCodename
			err := cfg.Validate(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(err.Error(), convey.ShouldContainSubstring, "must differ")
			})
		})

		convey.Convey("When metrics buckets are out of order", func() {
			cfg.Metrics.Buckets = []float64{10, 5}
			cfg.Metrics.SystemInterval = 0
			err := cfg.Validate(ctx)

			convey.Convey("Then both metrics problems are reported", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "metrics.buckets")
				convey.So(err.Error(), convey.ShouldContainSubstring, "metrics.system_interval")
			})
		})

		convey.Convey("When several fields are wrong at once", func() {
			cfg.Store = "redis"
			cfg.Cache = "memcached"
			cfg.RefreshWorkers = 0
			cfg.LogFormat = "xml"
			err := cfg.Validate(ctx)

			convey.Convey("Then all are reported together", func() {
				msg := err.Error()
				convey.So(msg, convey.ShouldContainSubstring, `store "redis"`)
				convey.So(msg, convey.ShouldContainSubstring, `cache "memcached"`)
				convey.So(msg, convey.ShouldContainSubstring, "refresh_workers")
				convey.So(msg, convey.ShouldContainSubstring, `log_format "xml"`)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CTFBOARD_CONFIG_FILE",
		"CTFBOARD_ADDR",
		"CTFBOARD_BOARD_CACHE_DURATION",
		"CTFBOARD_TIEBREAKER_CODENAME",
		"CTFBOARD_TIEBREAKER_MAX",
		"CTFBOARD_SEED_TEAMS",
		"CTFBOARD_CORS_ORIGINS",
		"CTFBOARD_REFRESH_WORKERS",
		"CTFBOARD_METRICS_NAMESPACE",
		"CTFBOARD_METRICS_SYSTEM_INTERVAL",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "ctfboard-config-*.yaml")
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
