package config

import (
	"database/sql"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/clipsight/clipsight/internal/models"
)

type Config struct {
	Port        int
	DatabaseURL string
	RedisAddr   string
	MediaDir    string
	FFmpegPath  string
	FFprobePath string

	// Detection tunables. Per-request options override these.
	DefaultSensitivity models.Sensitivity
	DefaultWeights     models.ScoreWeights
	CustomKeywords     []string
	JobTimeoutMinutes  int
	WorkerConcurrency  int
	TriggerRatePerMin  int
}

func Load() *Config {
	return &Config{
		Port:               envInt("PORT", 8080),
		DatabaseURL:        env("DATABASE_URL", "postgres://clipsight:clipsight@db:5432/clipsight?sslmode=disable"),
		RedisAddr:          env("REDIS_ADDR", "redis:6379"),
		MediaDir:           env("MEDIA_DIR", "/media"),
		FFmpegPath:         env("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:        env("FFPROBE_PATH", "ffprobe"),
		DefaultSensitivity: models.Sensitivity(env("DEFAULT_SENSITIVITY", string(models.SensitivityMedium))),
		DefaultWeights:     models.DefaultScoreWeights(),
		CustomKeywords:     envList("CUSTOM_KEYWORDS"),
		JobTimeoutMinutes:  envInt("JOB_TIMEOUT_MINUTES", 15),
		WorkerConcurrency:  envInt("WORKER_CONCURRENCY", 2),
		TriggerRatePerMin:  envInt("TRIGGER_RATE_PER_MIN", 30),
	}
}

// MergeFromDB overlays runtime settings stored in Postgres on top of the
// environment. Unknown keys and unparseable values are ignored.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("config: skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "default_sensitivity":
			if models.ValidSensitivity(models.Sensitivity(value)) {
				c.DefaultSensitivity = models.Sensitivity(value)
			}
		case "custom_keywords":
			c.CustomKeywords = splitList(value)
		case "job_timeout_minutes":
			if v := cast.ToInt(value); v > 0 {
				c.JobTimeoutMinutes = v
			}
		case "worker_concurrency":
			if v := cast.ToInt(value); v > 0 {
				c.WorkerConcurrency = v
			}
		case "trigger_rate_per_min":
			if v := cast.ToInt(value); v > 0 {
				c.TriggerRatePerMin = v
			}
		case "weight_audio", "weight_scene", "weight_speech", "weight_keyword":
			c.mergeWeight(key, value)
		}
	}
}

func (c *Config) mergeWeight(key, value string) {
	v := cast.ToFloat64(value)
	if v < 0 || v > 1 {
		return
	}
	w := c.DefaultWeights
	switch key {
	case "weight_audio":
		w.Audio = v
	case "weight_scene":
		w.Scene = v
	case "weight_speech":
		w.Speech = v
	case "weight_keyword":
		w.Keyword = v
	}
	if err := w.Validate(); err != nil {
		log.Printf("config: ignoring %s=%s: %v", key, value, err)
		return
	}
	c.DefaultWeights = w
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envList(key string) []string {
	return splitList(os.Getenv(key))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
