package pagecache

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPrefixMeta  = "meta-"
	defaultPrefixData  = "data-"
	defaultPoolSize    = 16
	defaultDialTimeout = 3 * time.Second

	// persistentID names shared connection handles; the driver is appended.
	persistentID = "pagecache"
)

// Config controls how a Backend is constructed. It is copied into the
// Backend and never changed afterwards.
type Config struct {
	Driver Driver `yaml:"driver"`

	// Hosts is a comma separated host:port list; required for networked drivers.
	Hosts string `yaml:"hosts"`

	// Expire is the entry TTL in seconds. Zero stores entries without expiry.
	Expire int `yaml:"expire"`

	// Persistent shares one connection handle across every Backend of the
	// same driver in the process.
	Persistent bool `yaml:"persistent"`

	InvalidationMethod InvalidationMethod `yaml:"invalidation_method"`

	// Debug routes every level to the logger; otherwise only warnings and errors.
	Debug bool `yaml:"debug"`
	// Log enables logging at all.
	Log bool `yaml:"log"`

	PrefixMeta string `yaml:"prefix_meta"`
	PrefixData string `yaml:"prefix_data"`

	// PoolSize caps idle connections kept per server.
	PoolSize int `yaml:"pool_size"`
	// DialTimeout bounds connecting to a networked server.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Expire < 0 {
		c.Expire = 0
	}
	if c.PrefixMeta == "" {
		c.PrefixMeta = defaultPrefixMeta
	}
	if c.PrefixData == "" {
		c.PrefixData = defaultPrefixData
	}
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	return c
}

// TTL returns Expire as a duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.Expire) * time.Second
}

// LoadConfig reads a YAML configuration file.
//
// Example:
//
//	driver: memcached
//	hosts: 10.0.0.1:11211,10.0.0.2:11211
//	expire: 300
//	invalidation_method: 1
//	log: true
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
