package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	// LookupCommand is the executable the gateway spawns per request. Empty
	// means re-exec the running binary with the lookup subcommand.
	LookupCommand string
	LookupTimeout time.Duration
	CatalogPath   string
	Headful       bool
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Load() Config {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "development"),
		HTTPAddr: getenv("HTTP_ADDR", ":5000"),

		LookupCommand: os.Getenv("LOOKUP_COMMAND"),
		LookupTimeout: time.Duration(getenvInt("LOOKUP_TIMEOUT_SECONDS", 120)) * time.Second,
		CatalogPath:   os.Getenv("LOOKUP_CATALOG"),
		Headful:       getenvBool("LOOKUP_HEADFUL", false),
	}
	if cfg.LookupTimeout <= 0 {
		panic(fmt.Errorf("LOOKUP_TIMEOUT_SECONDS must be positive"))
	}
	return cfg
}
