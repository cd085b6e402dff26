package config

import (
	"strings"
	"time"
)

// RedisConfig contains the credential store connection. Leaving URI empty
// keeps visitors in memory only.
type RedisConfig struct {
	URI                string        `env:"URI"                  envDefault:""`
	Password           string        `env:"PASSWORD"             envDefault:""`
	DB                 int           `env:"DB"                   envDefault:"0"`
	Prefix             string        `env:"PREFIX"               envDefault:"ward:credential:"`
	CredentialTTL      time.Duration `env:"CREDENTIAL_TTL"  envDefault:"24h"`
	SentinelNodes      []string      `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string        `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string        `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool          `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string      `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool          `env:"USE_CLUSTER"          envDefault:"false"`
}

// Sanitize trims addresses and fills defaults.
func (c *RedisConfig) Sanitize() {
	c.URI = strings.TrimSpace(c.URI)
	if c.Prefix == "" {
		c.Prefix = "ward:credential:"
	}
	if c.CredentialTTL <= 0 {
		c.CredentialTTL = 24 * time.Hour
	}
}

// Enabled reports whether any Redis topology is configured.
func (c *RedisConfig) Enabled() bool {
	switch {
	case c.UseCluster:
		return len(c.ClusterNodes) > 0 || c.URI != ""
	case c.UseSentinel:
		return len(c.SentinelNodes) > 0
	default:
		return c.URI != ""
	}
}
