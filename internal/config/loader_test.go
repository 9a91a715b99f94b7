package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/eraguess/eraguess/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			// Clear any existing environment variables
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.RoundCount, convey.ShouldEqual, 5)
				convey.So(cfg.CurveStrategy, convey.ShouldEqual, "bucketed")
				convey.So(cfg.CurvePointCount, convey.ShouldEqual, 15)
				convey.So(cfg.GuessQueueSize, convey.ShouldEqual, 100_000)
				convey.So(cfg.SweepInterval, convey.ShouldEqual, 15*time.Minute)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			// Set environment variables
			_ = os.Setenv("ERAGUESS_ADDR", ":8080")
			_ = os.Setenv("ERAGUESS_QUEUE_SIZE", "50000")
			_ = os.Setenv("ERAGUESS_WORKER_COUNT", "16")
			_ = os.Setenv("ERAGUESS_ROUND_COUNT", "7")
			_ = os.Setenv("ERAGUESS_CURVE_STRATEGY", "kde")
			_ = os.Setenv("ERAGUESS_AGE_THRESHOLD_DAYS", "3")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.GuessQueueSize, convey.ShouldEqual, 50000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.RoundCount, convey.ShouldEqual, 7)
				convey.So(cfg.CurveStrategy, convey.ShouldEqual, "kde")
				convey.So(cfg.AgeThresholdDays, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			// Create a temporary YAML config file
			yamlContent := `
addr: ":9090"
queue_size: 300000
worker_count: 24
round_count: 6
curve_point_count: 21
archive_bucket: "eraguess-archive"
archive_prefix: "daily"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			// Set the config file path
			_ = os.Setenv("ERAGUESS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.GuessQueueSize, convey.ShouldEqual, 300000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.RoundCount, convey.ShouldEqual, 6)
				convey.So(cfg.CurvePointCount, convey.ShouldEqual, 21)
				convey.So(cfg.ArchiveBucket, convey.ShouldEqual, "eraguess-archive")
				convey.So(cfg.ArchivePrefix, convey.ShouldEqual, "daily")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			// Create a YAML config file
			yamlContent := `
addr: ":9090"
queue_size: 300000
worker_count: 24
round_count: 6
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			// Set both file and environment variables
			_ = os.Setenv("ERAGUESS_CONFIG", tmpFile)
			_ = os.Setenv("ERAGUESS_ADDR", ":8080")      // This should override the file
			_ = os.Setenv("ERAGUESS_WORKER_COUNT", "32") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")          // Overridden by env
				convey.So(cfg.GuessQueueSize, convey.ShouldEqual, 300000) // From file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)        // Overridden by env
				convey.So(cfg.RoundCount, convey.ShouldEqual, 6)          // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			// Create an invalid YAML file
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ERAGUESS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ERAGUESS_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("ERAGUESS_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown curve strategy", func() {
			_ = os.Setenv("ERAGUESS_CURVE_STRATEGY", "splines")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "curve_strategy")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a zero round count", func() {
			_ = os.Setenv("ERAGUESS_ROUND_COUNT", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "round_count")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			// Create a YAML file with only some fields
			yamlContent := `
addr: ":9090"
worker_count: 16
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ERAGUESS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")            // From file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)          // From file
				convey.So(cfg.GuessQueueSize, convey.ShouldEqual, 100_000)  // From defaults
				convey.So(cfg.RoundCount, convey.ShouldEqual, 5)            // From defaults
				convey.So(cfg.CurveStrategy, convey.ShouldEqual, "bucketed") // From defaults
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("ERAGUESS_QUEUE_SIZE", "invalid")
			_ = os.Setenv("ERAGUESS_WORKER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with very large values", func() {
			_ = os.Setenv("ERAGUESS_QUEUE_SIZE", "1000000")
			_ = os.Setenv("ERAGUESS_WORKER_COUNT", "1000")
			_ = os.Setenv("ERAGUESS_EMERGENCY_COMPLETIONS", "5000000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should handle large values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.GuessQueueSize, convey.ShouldEqual, 1000000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 1000)
				convey.So(cfg.EmergencyCompletions, convey.ShouldEqual, 5000000)
			})
		})

		convey.Convey("When loading config with special characters in addr", func() {
			_ = os.Setenv("ERAGUESS_ADDR", "localhost:8080")
			_ = os.Setenv("ERAGUESS_ADDR", "0.0.0.0:9090")
			_ = os.Setenv("ERAGUESS_ADDR", "[::1]:8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should handle various addr formats", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "[::1]:8080") // Last one wins
			})
		})

		convey.Convey("When loading config with YAML file containing comments", func() {
			yamlContent := `
# This is a comment
addr: ":9090"  # Inline comment
queue_size: 300000
worker_count: 24
# Another comment
round_count: 6
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ERAGUESS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should parse YAML with comments", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.GuessQueueSize, convey.ShouldEqual, 300000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.RoundCount, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When loading config with YAML file containing empty values", func() {
			yamlContent := `
addr: ""
queue_size:
worker_count: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ERAGUESS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"ERAGUESS_CONFIG",
		"ERAGUESS_ADDR",
		"ERAGUESS_QUEUE_SIZE",
		"ERAGUESS_WORKER_COUNT",
		"ERAGUESS_ROUND_COUNT",
		"ERAGUESS_CURVE_STRATEGY",
		"ERAGUESS_AGE_THRESHOLD_DAYS",
		"ERAGUESS_EMERGENCY_COMPLETIONS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "eraguess-config-*.yaml")
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
