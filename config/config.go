// Package config loads the SHIPSEC_* environment configuration using
// viper's AutomaticEnv binding, with an optional YAML config file layered
// underneath.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration loaded at startup.
type Config struct {
	// HTTPAddr is the address the REST API binds to.
	HTTPAddr string
	// VersionCheckURL is fetched once at startup and its response is logged
	// at debug level; no version comparison is made. Empty disables the check.
	VersionCheckURL string
	// StoreDriver selects the durable store implementation: "memory",
	// "sqlite", or "mysql".
	StoreDriver string
	// StoreDSN is the driver-specific connection string (file path for
	// sqlite, DSN for mysql; ignored for memory).
	StoreDSN string
	// ArtifactBackend selects "fs" or "s3".
	ArtifactBackend string
	ArtifactFSRoot  string
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	// RedisURL backs the secrets cache; empty disables the Redis layer in
	// favor of an in-memory secrets store.
	RedisURL string
	// RequestTimeout bounds remote-runner HTTP calls for components that
	// declare no timeoutSeconds of their own.
	RequestTimeout time.Duration
	// NodeTimeout is the engine's DefaultNodeTimeout.
	NodeTimeout time.Duration
	// FeatureContainerRunner gates the container runner; disabled
	// deployments run only inline/remote components.
	FeatureContainerRunner bool
	// LogLevel/LogFormat configure the process logger (logging.Config).
	LogLevel  string
	LogFormat string
	// JWTSecret signs/validates bearer tokens on mutating /workflows
	// routes; empty disables JWT auth entirely (local development).
	JWTSecret string
	// AnthropicAPIKey/OpenAIAPIKey enable the corresponding chat
	// components in the catalog when non-empty.
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// Load reads SHIPSEC_* environment variables (and an optional config
// file: explicit path, then ./.shipsec.yaml, then $HOME/.shipsec.yaml)
// into a Config with defaults applied for anything unset.
func Load(explicitConfigFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHIPSEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("artifact.backend", "fs")
	v.SetDefault("artifact.fs_root", "./artifacts")
	v.SetDefault("request.timeout_seconds", 30)
	v.SetDefault("node.timeout_seconds", 300)
	v.SetDefault("feature.container_runner", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if explicitConfigFile != "" {
		v.SetConfigFile(explicitConfigFile)
	} else {
		v.SetConfigName(".shipsec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	_ = v.ReadInConfig() // absence of a config file is not fatal; env vars suffice

	return &Config{
		HTTPAddr:               v.GetString("http.addr"),
		VersionCheckURL:        v.GetString("version.check_url"),
		StoreDriver:            v.GetString("store.driver"),
		StoreDSN:               v.GetString("store.dsn"),
		ArtifactBackend:        v.GetString("artifact.backend"),
		ArtifactFSRoot:         v.GetString("artifact.fs_root"),
		S3Endpoint:             v.GetString("s3.endpoint"),
		S3Region:               v.GetString("s3.region"),
		S3Bucket:               v.GetString("s3.bucket"),
		S3AccessKey:            v.GetString("s3.access_key"),
		S3SecretKey:            v.GetString("s3.secret_key"),
		RedisURL:               v.GetString("redis.url"),
		RequestTimeout:         time.Duration(v.GetInt("request.timeout_seconds")) * time.Second,
		NodeTimeout:            time.Duration(v.GetInt("node.timeout_seconds")) * time.Second,
		FeatureContainerRunner: v.GetBool("feature.container_runner"),
		LogLevel:               v.GetString("log.level"),
		LogFormat:              v.GetString("log.format"),
		JWTSecret:              v.GetString("jwt.secret"),
		AnthropicAPIKey:        v.GetString("anthropic.api_key"),
		OpenAIAPIKey:           v.GetString("openai.api_key"),
	}, nil
}
