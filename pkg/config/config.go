package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Playback  PlaybackConfig
	Checklist ChecklistConfig

	StoragePath string
}

type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PlaybackConfig struct {
	TickInterval time.Duration
}

type ChecklistConfig struct {
	// Dir holds local YAML checklist definitions used when no backend is
	// configured or a checklist should be loaded offline.
	Dir string
}

// Load reads configuration from environment and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Address:      getenv("ADDR", ":8080"),
			ReadTimeout:  getenvDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getenvDuration("WRITE_TIMEOUT", 30*time.Second),
		},
		Backend: BackendConfig{
			BaseURL: getenv("BACKEND_BASE_URL", "http://localhost:8000"),
			Timeout: getenvDuration("BACKEND_TIMEOUT", 15*time.Second),
		},
		Playback: PlaybackConfig{
			TickInterval: getenvDuration("TICK_INTERVAL", 250*time.Millisecond),
		},
		Checklist: ChecklistConfig{
			Dir: getenv("CHECKLIST_DIR", ""),
		},
		StoragePath: getenv("STORAGE_PATH", "./data"),
	}

	log.Printf("config: addr=%s backend=%s storage=%s tick=%s",
		cfg.Server.Address, cfg.Backend.BaseURL, cfg.StoragePath, cfg.Playback.TickInterval)
	return cfg
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
