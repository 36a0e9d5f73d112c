package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	DataPath     string `envconfig:"DATA_PATH" default:"/var/lib/skiff"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/var/lib/skiff/skiff.db"`
	LogPath      string `envconfig:"LOG_PATH" default:"/var/lib/skiff/skiff.log"`
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:7329"`

	// Session limits
	MaxSessions       int `envconfig:"MAX_SESSIONS" default:"10"`
	TerminalCacheSize int `envconfig:"TERMINAL_CACHE_SIZE" default:"20"`
	ScrollbackBytes   int `envconfig:"SCROLLBACK_BYTES" default:"1048576"`

	// Reconnection
	ReconnectBaseDelay   string `envconfig:"RECONNECT_BASE_DELAY" default:"1s"`
	ReconnectMaxAttempts int    `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`

	// Seed file with server definitions, imported at startup if present.
	ServersFile string `envconfig:"SERVERS_FILE" default:""`

	// Audit log retention in days. 0 disables purging.
	AuditRetentionDays int `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("SKIFF", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
