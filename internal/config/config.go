// Package config holds the broker's compile-time defaults.
//
// The broker binary takes no arguments, reads no environment variables,
// and the listen address / data directory are compile-time defaults.
// There is deliberately no flag, env, or file parsing here — see
// DESIGN.md's "internal/config" entry for the reasoning.
package config

const (
	// DefaultListenAddr is the TCP address the broker listens on for the
	// produce/fetch wire protocol.
	DefaultListenAddr = "127.0.0.1:9092"

	// DefaultAdminAddr is the TCP address the ambient admin HTTP server
	// (metrics, health) listens on. Purely observability scaffolding; not
	// part of the wire protocol spec.
	DefaultAdminAddr = "127.0.0.1:9093"

	// DefaultDataDir is where partition log files are created.
	DefaultDataDir = "data"

	// MaxFrameBytes is the largest frame the codec will accept before
	// rejecting it as a protocol error and closing the connection.
	MaxFrameBytes = 8 << 20 // 8 MiB

	// ReadHandleCacheSize bounds the number of cached read-only file
	// handles kept open across fetch calls (see internal/storage).
	ReadHandleCacheSize = 256

	// LockShards is the number of mutex shards the broker registry uses
	// for per-partition exclusion (a hashmap of per-partition locks,
	// sharded to bound memory).
	LockShards = 256
)

// Config is the broker's runtime configuration. Default populates every
// field from the constants above, except LogLevel, which is fixed at
// "info"; nothing here is mutated by flags or the environment.
type Config struct {
	ListenAddr           string
	AdminAddr            string
	DataDir              string
	MaxFrameBytes        uint32
	ReadHandleCacheSize   int
	LockShards           int
	LogLevel             string
}

// Default returns the broker's fixed configuration.
func Default() Config {
	return Config{
		ListenAddr:          DefaultListenAddr,
		AdminAddr:           DefaultAdminAddr,
		DataDir:             DefaultDataDir,
		MaxFrameBytes:       MaxFrameBytes,
		ReadHandleCacheSize: ReadHandleCacheSize,
		LockShards:          LockShards,
		LogLevel:            "info",
	}
}
