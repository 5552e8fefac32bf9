package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AppConfig holds the runtime settings of the front-desk client.
type AppConfig struct {
	APIBaseURL         string
	APITimeout         time.Duration
	HTTPAddr           string
	Location           *time.Location
	NotificationBuffer int
	ClockTick          bool
}

func LoadAppConfig() (*AppConfig, error) {
	base := strings.TrimRight(getEnv("API_BASE_URL", "https://api.exora.app/api"), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid API_BASE_URL %q: %w", base, err)
	}

	tz := getEnv("TIMEZONE", "Europe/Madrid")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	timeout := getEnvInt("API_TIMEOUT_SEC", 20)
	if timeout <= 0 {
		timeout = 20
	}

	return &AppConfig{
		APIBaseURL:         base,
		APITimeout:         time.Duration(timeout) * time.Second,
		HTTPAddr:           getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		Location:           loc,
		NotificationBuffer: getEnvInt("NOTIFICATION_BUFFER", 50),
		ClockTick:          getEnvBool("CLOCK_TICK", true),
	}, nil
}
