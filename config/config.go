package config

import (
	"os"

	"github.com/dawnzzz/rcluster/logger"
	"github.com/spf13/viper"
)

// ClusterOptions configures a cluster router and its default connections.
type ClusterOptions struct {
	Debug bool `mapstructure:"debug"`

	// Password, when set, is used to AUTH new connections that don't
	// carry their own per-connection password.
	Password string `mapstructure:"password"`

	// DefaultWeight is used for pooled connections whose Parameters.Weight
	// is unset (zero).
	DefaultWeight int `mapstructure:"default_weight"`

	// MaxRedirects caps MOVED/ASK redirection chain depth before a
	// command execution surfaces a ClientError, per the loop-cap design
	// note in the routing core's specification.
	MaxRedirects int `mapstructure:"max_redirects"`

	// DialTimeoutSeconds is loaded from the config file but not applied:
	// client.Client dials with net.Dial, which has no timeout.
	DialTimeoutSeconds int `mapstructure:"dial_timeout_seconds"`

	// KeepaliveSeconds drives the client heartbeat: a PING is sent every
	// KeepaliveSeconds/2; 0 disables it.
	KeepaliveSeconds int `mapstructure:"keepalive_seconds"`
}

var Properties *ClusterOptions

func init() {
	Properties = &ClusterOptions{
		Debug:              os.Getenv("ENV") == "DEBUG",
		Password:           "",
		DefaultWeight:      1,
		MaxRedirects:       16,
		DialTimeoutSeconds: 5,
		KeepaliveSeconds:   0,
	}
}

// SetupConfig loads configFilename over the defaults, if present. A
// missing file is not an error: the defaults above are used as-is.
func SetupConfig(configFilename string) {
	if !fileExists(configFilename) {
		return
	}

	viper.SetConfigFile(configFilename)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatalf("setup config err, %v", err)
	}

	if err := viper.Unmarshal(Properties); err != nil {
		logger.Fatalf("setup config unmarshal err, %v", err)
	}

	if Properties.Debug {
		Properties.Password = ""
	}
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}
