// Package config loads apilogd's settings from flags and environment
// variables, in the teacher's style of a defaults-then-override
// Config struct (see wal/config.go's Config and its New constructor).
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds every setting apilogd needs to start.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	MemoryThreshold uint64
	MaxHistory      int

	AuditDir   string
	ArchiveDir string

	KafkaBrokers       []string
	KafkaInboundTopic  string
	KafkaOutboundTopic string
	KafkaGroup         string

	BroadcastInterval time.Duration

	SentryDSN string
}

// defaults mirrors wal.Config's New: a Config is never invalid, only
// ever partially specified.
func defaults() Config {
	return Config{
		HTTPAddr:           ":8080",
		GRPCAddr:           ":50051",
		MemoryThreshold:    8 << 20,
		MaxHistory:         8,
		AuditDir:           "./audit",
		ArchiveDir:         "./archive",
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaInboundTopic:  "apilog.calls.in",
		KafkaOutboundTopic: "apilog.calls.archived",
		KafkaGroup:         "apilogd",
		BroadcastInterval:  2 * time.Second,
	}
}

// Load builds a Config from defaults, then environment variables,
// then command-line flags parsed from args — each layer overriding
// the last, the way production services in this codebase are
// configured.
func Load(args []string) (Config, error) {
	cfg := defaults()
	applyEnv(&cfg)

	fs := flag.NewFlagSet("apilogd", flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "address for the admin HTTP API")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "address for the gRPC health/reflection server")
	fs.Uint64Var(&cfg.MemoryThreshold, "memory-threshold", cfg.MemoryThreshold, "bytes per BoundedList segment before rotation")
	fs.IntVar(&cfg.MaxHistory, "max-history", cfg.MaxHistory, "rotated segments retained beyond the current one")
	fs.StringVar(&cfg.AuditDir, "audit-dir", cfg.AuditDir, "directory for the audit write-ahead log")
	fs.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "directory for the Pebble archive store")
	fs.StringVar(&cfg.KafkaInboundTopic, "kafka-inbound-topic", cfg.KafkaInboundTopic, "topic consumed for inbound call events")
	fs.StringVar(&cfg.KafkaOutboundTopic, "kafka-outbound-topic", cfg.KafkaOutboundTopic, "topic published with archived batches")
	fs.StringVar(&cfg.KafkaGroup, "kafka-group", cfg.KafkaGroup, "consumer group for inbound call events")
	fs.DurationVar(&cfg.BroadcastInterval, "broadcast-interval", cfg.BroadcastInterval, "how often to replay unsent archived batches")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APILOGD_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("APILOGD_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("APILOGD_MEMORY_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MemoryThreshold = n
		}
	}
	if v := os.Getenv("APILOGD_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxHistory = n
		}
	}
	if v := os.Getenv("APILOGD_AUDIT_DIR"); v != "" {
		cfg.AuditDir = v
	}
	if v := os.Getenv("APILOGD_ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv("APILOGD_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitNonEmpty(v, ',')
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.SentryDSN = v
	}
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
