package config

import (
	"flag"
	"os"
	"time"

	"github.com/itter-sh/itter/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   SSH bind address (e.g., ":2222")
//	-k string   host key path
//	-d string   PostgreSQL DSN
//	-e string   event source driver ("postgres" or "memory")
//	-s string   IP hash salt
//	-q int      per-watcher delivery queue capacity
//	-r int      event source reconnect delay, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-d", "-e", "-s", "-q", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrSSH, "a", config.EndpointAddrSSH, "address and port to run server")
	fs.StringVar(&config.HostKeyPath, "k", config.HostKeyPath, "host key path")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.EventSourceDriver, "e", config.EventSourceDriver, "event source driver")
	fs.StringVar(&config.IPHashSalt, "s", config.IPHashSalt, "IP hash salt")
	fs.IntVar(&config.SubscriptionQueueSize, "q", config.SubscriptionQueueSize, "subscription queue capacity")

	eventReconnectDelay := fs.Int("r", int(config.EventReconnectDelay.Seconds()), "event source reconnect delay (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.EventReconnectDelay = time.Duration(*eventReconnectDelay) * time.Second
}
