package config

import (
	"encoding/json"
	"os"

	"github.com/itter-sh/itter/internal/flagx"
	"github.com/itter-sh/itter/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "2s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; its set fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrSSH       string         `json:"endpoint_addr_ssh"`
	HostKeyPath           string         `json:"host_key_path"`
	DatabaseDSN           string         `json:"database_dsn"`
	EventSourceDriver     string         `json:"event_source_driver"`
	IPHashSalt            string         `json:"ip_hash_salt"`
	SubscriptionQueueSize int            `json:"subscription_queue_size"`
	EventReconnectDelay   timex.Duration `json:"event_reconnect_delay"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. Absent file means nothing to
// overlay; unset fields keep their current values. An unreadable or
// invalid file panics, startup config is not something to limp past.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrSSH != "" {
		config.EndpointAddrSSH = c.EndpointAddrSSH
	}
	if c.HostKeyPath != "" {
		config.HostKeyPath = c.HostKeyPath
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.EventSourceDriver != "" {
		config.EventSourceDriver = c.EventSourceDriver
	}
	if c.IPHashSalt != "" {
		config.IPHashSalt = c.IPHashSalt
	}
	if c.SubscriptionQueueSize > 0 {
		config.SubscriptionQueueSize = c.SubscriptionQueueSize
	}
	if c.EventReconnectDelay.Duration > 0 {
		config.EventReconnectDelay = c.EventReconnectDelay.Duration
	}
}
