package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/serverless/function-gateway/function"
)

// DefaultPath of the configuration file.
const DefaultPath = "System.json"

// EnvPrefix of environment variables overriding configuration keys, e.g. FUNCTION_GATEWAY_WEBSERVER_TCPPORT.
const EnvPrefix = "FUNCTION_GATEWAY"

// Config is the configuration shared by all nodes.
type Config struct {
	Webserver    Webserver             `mapstructure:"webserver"`
	MessageBus   MessageBus            `mapstructure:"messageBus"`
	Logging      Logging               `mapstructure:"logging"`
	Metrics      Metrics               `mapstructure:"metrics"`
	Registry     Registry              `mapstructure:"registry"`
	Applications function.Applications `mapstructure:"applications" validate:"-"`
}

// Webserver configures the gateway HTTP listener.
type Webserver struct {
	Hostname   string `mapstructure:"hostname"`
	TCPPort    uint   `mapstructure:"tcpPort" validate:"min=1,max=65535"`
	TLSEnabled bool   `mapstructure:"tlsEnabled"`
	TLSCert    string `mapstructure:"tlsCert"`
	TLSKey     string `mapstructure:"tlsKey"`
	Debug      bool   `mapstructure:"debug"`
}

// MessageBus configures the broker listener and the sessions connecting to it.
type MessageBus struct {
	Hostname      string   `mapstructure:"hostname" validate:"required"`
	TCPPort       uint     `mapstructure:"tcpPort" validate:"min=1,max=65535"`
	SyncTimeoutMs int      `mapstructure:"syncTimeoutMs" validate:"min=1"`
	Channels      Channels `mapstructure:"channels"`
}

// Channels names the channels nodes communicate on.
type Channels struct {
	Main       string `mapstructure:"main" validate:"required"`
	Health     string `mapstructure:"health" validate:"required"`
	Invocation string `mapstructure:"invocation" validate:"required"`
}

// Logging configures log sinks.
type Logging struct {
	SyslogServerIP   string `mapstructure:"syslogServerIp"`
	SyslogServerPort uint   `mapstructure:"syslogServerPort" validate:"max=65535"`
	SyslogEnabled    bool   `mapstructure:"syslogEnabled"`
	MinimumSeverity  string `mapstructure:"minimumSeverity" validate:"oneof=debug info warn error"`
	ConsoleLogging   bool   `mapstructure:"consoleLogging"`
	FilePath         string `mapstructure:"filePath"`
}

// Metrics configures the standalone metrics listener. Zero disables it.
type Metrics struct {
	TCPPort uint `mapstructure:"tcpPort" validate:"max=65535"`
}

// Registry tells where applications are loaded from.
type Registry struct {
	Source  string   `mapstructure:"source" validate:"oneof=config kv"`
	DBHosts []string `mapstructure:"dbHosts"`
	Prefix  string   `mapstructure:"prefix"`
}

const (
	// SourceConfig loads applications from the configuration file.
	SourceConfig = "config"
	// SourceKV loads applications from etcd.
	SourceKV = "kv"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("webserver.hostname", "*")
	v.SetDefault("webserver.tcpPort", 8000)
	v.SetDefault("webserver.tlsEnabled", false)
	v.SetDefault("webserver.tlsCert", "")
	v.SetDefault("webserver.tlsKey", "")
	v.SetDefault("webserver.debug", false)

	v.SetDefault("messageBus.hostname", "127.0.0.1")
	v.SetDefault("messageBus.tcpPort", 9000)
	v.SetDefault("messageBus.syncTimeoutMs", 15000)
	v.SetDefault("messageBus.channels.main", "main")
	v.SetDefault("messageBus.channels.health", "health")
	v.SetDefault("messageBus.channels.invocation", "invocation")

	v.SetDefault("logging.syslogServerIp", "127.0.0.1")
	v.SetDefault("logging.syslogServerPort", 514)
	v.SetDefault("logging.syslogEnabled", false)
	v.SetDefault("logging.minimumSeverity", "info")
	v.SetDefault("logging.consoleLogging", true)
	v.SetDefault("logging.filePath", "")

	v.SetDefault("metrics.tcpPort", 0)

	v.SetDefault("registry.source", SourceConfig)
	v.SetDefault("registry.dbHosts", []string{"127.0.0.1:2379"})
	v.SetDefault("registry.prefix", "/function-gateway/applications")
}

// Load reads configuration from the JSON file at path. A missing file gives the defaults.
// Every key can be overridden with an environment variable.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to read configuration file %q: %s", path, err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %s", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks configuration values. Applications are validated when the registry is built.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration doesn't validate: %s", err)
	}
	if c.Webserver.TLSEnabled && (c.Webserver.TLSCert == "" || c.Webserver.TLSKey == "") {
		return fmt.Errorf("configuration doesn't validate: webserver.tlsCert and webserver.tlsKey are required when TLS is enabled")
	}
	return nil
}

// SyncTimeout returns the synchronous call timeout.
func (m MessageBus) SyncTimeout() time.Duration {
	return time.Duration(m.SyncTimeoutMs) * time.Millisecond
}

// SyslogAddr returns the address of the syslog server.
func (l Logging) SyslogAddr() string {
	return net.JoinHostPort(l.SyslogServerIP, strconv.Itoa(int(l.SyslogServerPort)))
}
