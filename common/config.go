package common

import "github.com/spf13/viper"

// ===============================================================================
// NATS Related Config

// NATSReconnectConfig defines reconnect parameters
type NATSReconnectConfig struct {
	// MaxAttempts sets the max number of reconnect attempts (-1 is unlimited)
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts" validate:"gte=-1"`
	// WaitInterval is the duration between reconnect attempts in seconds
	WaitInterval int `mapstructure:"wait_interval_sec" json:"wait_interval_sec" validate:"gte=1"`
}

// NATSAuthConfig defines the NATS connection credentials
type NATSAuthConfig struct {
	// Username is the NATS connection user name
	Username string `mapstructure:"username" json:"username"`
	// Password is the NATS connection password
	Password string `mapstructure:"password" json:"-"`
}

// NATSConfig defines parameters for connecting to NATS server
type NATSConfig struct {
	// ServerURI is the NATS connection URI
	ServerURI string `mapstructure:"server_uri" json:"server_uri" validate:"required,uri"`
	// ConnectTimeout is the max duration for connecting to NATS server in seconds
	ConnectTimeout int `mapstructure:"connect_timeout_sec" json:"connect_timeout_sec" validate:"gte=1"`
	// PublishTimeout is the max duration for flushing a published message in seconds
	PublishTimeout int `mapstructure:"publish_timeout_sec" json:"publish_timeout_sec" validate:"gte=1"`
	// Reconnect defines reconnect parameters
	Reconnect NATSReconnectConfig `mapstructure:"reconnect" json:"reconnect" validate:"required,dive"`
	// Auth defines the connection credentials
	Auth NATSAuthConfig `mapstructure:"auth" json:"auth"`
}

// ===============================================================================
// Chat Related Config

// ChatConfig defines the chat relay parameters
type ChatConfig struct {
	// Channel is the shared broker channel all relayed messages pass through
	Channel string `mapstructure:"channel" json:"channel" validate:"required"`
	// MaxMessageSize is the maximum allowed size of a client frame in bytes
	MaxMessageSize int64 `mapstructure:"max_message_size" json:"max_message_size" validate:"gt=0"`
	// SendQueueLen is the per-session outbound frame queue length
	SendQueueLen int `mapstructure:"send_queue_len" json:"send_queue_len" validate:"gt=0"`
	// WriteTimeout is the max duration for writing a frame to a client in seconds
	WriteTimeout int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=1"`
}

// ===============================================================================
// Visit Counter Related Config

// CounterConfig defines the visit counter parameters
type CounterConfig struct {
	// Backend selects the counter implementation
	Backend string `mapstructure:"backend" json:"backend" validate:"required,oneof=memory redis"`
	// RedisURI is the Redis connection URI when Backend is "redis"
	RedisURI string `mapstructure:"redis_uri" json:"redis_uri" validate:"required_if=Backend redis,omitempty,uri"`
	// Key is the store key holding the count
	Key string `mapstructure:"key" json:"key" validate:"required"`
	// CallTimeout is the max duration of a counter store call in seconds
	CallTimeout int `mapstructure:"call_timeout_sec" json:"call_timeout_sec" validate:"gte=1"`
}

// ===============================================================================
// HTTP Related Config

// HTTPServerConfig defines the HTTP server parameters
type HTTPServerConfig struct {
	// ListenOn is the interface the HTTP server will listen on
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,ip"`
	// Port is the port the HTTP server will listen on
	Port uint16 `mapstructure:"listen_port" json:"listen_port" validate:"required,gt=0,lt=65536"`
	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body in seconds. A zero or negative
	// value means there will be no timeout.
	ReadTimeout int `mapstructure:"read_timeout_sec" json:"read_timeout_sec" validate:"gte=0"`
	// WriteTimeout is the maximum duration before timing out
	// writes of the response in seconds. A zero or negative value
	// means there will be no timeout.
	WriteTimeout int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=0"`
	// IdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled in seconds. If
	// IdleTimeout is zero, the value of ReadTimeout is used. If
	// both are zero, there is no timeout.
	IdleTimeout int `mapstructure:"idle_timeout_sec" json:"idle_timeout_sec" validate:"gte=0"`
}

// HTTPRequestLogging defines HTTP request logging parameters
type HTTPRequestLogging struct {
	// RequestIDHeader is the HTTP header containing the API request ID
	RequestIDHeader string `mapstructure:"request_id_header" json:"request_id_header"`
	// DoNotLogHeaders is the list of headers to not include in logging metadata
	DoNotLogHeaders []string `mapstructure:"do_not_log_headers" json:"do_not_log_headers"`
}

// HTTPConfig defines HTTP API / server parameters
type HTTPConfig struct {
	// Server defines HTTP server parameters
	Server HTTPServerConfig `mapstructure:"server_config" json:"server_config" validate:"required,dive"`
	// Logging defines operation logging parameters
	Logging HTTPRequestLogging `mapstructure:"logging_config" json:"logging_config" validate:"required,dive"`
}

// ===============================================================================
// Relay Server Related Config

// RelayEndpointConfig defines relay server endpoint config
type RelayEndpointConfig struct {
	// PathPrefix is the end-point path prefix for the relay server
	PathPrefix string `mapstructure:"path_prefix" json:"path_prefix" validate:"required"`
}

// RelayServerConfig defines configuration for the relay server
type RelayServerConfig struct {
	// HTTPSetting is the HTTP API / server parameters for the relay server
	HTTPSetting HTTPConfig `mapstructure:"api_server" json:"api_server" validate:"required,dive"`
	// Endpoints is the API endpoint config parameters for the relay server
	Endpoints RelayEndpointConfig `mapstructure:"endpoint_config" json:"endpoint_config" validate:"required,dive"`
}

// ===============================================================================
// Complete Config

// SystemConfig defines the complete system config for the relay server
type SystemConfig struct {
	// NATS are the NATS related config parameters
	NATS NATSConfig `mapstructure:"nats" json:"nats" validate:"required,dive"`
	// Chat are the chat relay config parameters
	Chat ChatConfig `mapstructure:"chat" json:"chat" validate:"required,dive"`
	// Counter are the visit counter config parameters
	Counter CounterConfig `mapstructure:"counter" json:"counter" validate:"required,dive"`
	// Relay are the relay server configs
	Relay RelayServerConfig `mapstructure:"relay" json:"relay" validate:"required,dive"`
}

// ===============================================================================

// InstallDefaultConfigValues installs default config parameters in viper
func InstallDefaultConfigValues() {
	// Default NATS settings
	viper.SetDefault("nats.server_uri", "nats://127.0.0.1:4222")
	viper.SetDefault("nats.connect_timeout_sec", 30)
	viper.SetDefault("nats.publish_timeout_sec", 5)
	viper.SetDefault("nats.reconnect.max_attempts", -1)
	viper.SetDefault("nats.reconnect.wait_interval_sec", 15)

	// Default chat settings
	viper.SetDefault("chat.channel", "chat/default")
	viper.SetDefault("chat.max_message_size", 4096)
	viper.SetDefault("chat.send_queue_len", 64)
	viper.SetDefault("chat.write_timeout_sec", 10)

	// Default counter settings
	viper.SetDefault("counter.backend", "memory")
	viper.SetDefault("counter.key", "chatrelay/global-count")
	viper.SetDefault("counter.call_timeout_sec", 5)

	// Default relay server settings
	viper.SetDefault("relay.endpoint_config.path_prefix", "/")
	viper.SetDefault("relay.api_server.server_config.listen_on", "0.0.0.0")
	viper.SetDefault("relay.api_server.server_config.listen_port", 3000)
	viper.SetDefault("relay.api_server.server_config.read_timeout_sec", 60)
	viper.SetDefault("relay.api_server.server_config.write_timeout_sec", 60)
	viper.SetDefault("relay.api_server.server_config.idle_timeout_sec", 600)
	viper.SetDefault(
		"relay.api_server.logging_config.request_id_header", "Chatrelay-Request-ID",
	)
	viper.SetDefault(
		"relay.api_server.logging_config.do_not_log_headers", []string{
			"WWW-Authenticate", "Authorization", "Proxy-Authenticate", "Proxy-Authorization",
		},
	)
}
