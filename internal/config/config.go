package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/storefrontlabs/reserveflow/internal/reservation"
)

// Config holds the server's environment-driven settings. Values not set in
// the environment fall back to local-development defaults.
type Config struct {
	Port         string
	PlatformURL  string
	KafkaBrokers string
	CatalogPath  string
	VouchPath    string
	StaffToken   string
	StaffViewer  string

	Policy reservation.Policy
}

func Load() Config {
	policy := reservation.DefaultPolicy()
	policy.DefaultReserve = getdur("RESERVE_DEFAULT", policy.DefaultReserve)
	policy.Cooldown = getdur("ACTION_COOLDOWN", policy.Cooldown)
	policy.MaxQuantity = getint("MAX_QUANTITY", policy.MaxQuantity)
	for i := range policy.Methods {
		key := fmt.Sprintf("RESERVE_%s", strings.ToUpper(policy.Methods[i].Name))
		policy.Methods[i].Duration = getdur(key, policy.Methods[i].Duration)
	}

	return Config{
		Port:         getenv("PORT", "8080"),
		PlatformURL:  getenv("PLATFORM_SERVICE_URL", "http://localhost:8084"),
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		CatalogPath:  getenv("CATALOG_PATH", "config/catalog.json"),
		VouchPath:    getenv("VOUCH_PATH", "vouches.json"),
		StaffToken:   getenv("STAFF_TOKEN", ""),
		StaffViewer:  getenv("STAFF_VIEWER", "staff"),
		Policy:       policy,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
