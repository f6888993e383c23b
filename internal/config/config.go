package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/weiawesome/wes-io-live/chat-client/internal/channel"
	"github.com/weiawesome/wes-io-live/chat-client/internal/identity"
	pkgconfig "github.com/weiawesome/wes-io-live/chat-client/pkg/config"
	pkglog "github.com/weiawesome/wes-io-live/chat-client/pkg/log"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/pubsub"
)

// Client is the terminal client configuration.
type Client struct {
	ServerURL string `mapstructure:"server_url"`
	RoomID    string `mapstructure:"room_id"`
	Identity  identity.Config
	WebSocket channel.Config
	Members   MembersConfig
	Log       pkglog.Config
}

type MembersConfig struct {
	Timeout time.Duration
}

// DevServer is the local chat server configuration.
type DevServer struct {
	Server    ServerConfig
	Auth      AuthConfig
	WebSocket channel.Config
	PubSub    pubsub.Config
	Log       pkglog.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	Secret        string
	TokenDuration time.Duration `mapstructure:"token_duration"`
	Issuer        string
}

// NewClientViper returns a viper instance with client defaults and
// environment bindings applied. Callers may bind flags on it before
// calling ClientFromViper.
func NewClientViper(configPath string) (*viper.Viper, error) {
	v, err := pkgconfig.Load(configPath, "chat-client", "CHAT")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("room_id", "")
	v.SetDefault("identity.token", "")
	v.SetDefault("identity.secret", "")
	v.SetDefault("identity.id", "")
	v.SetDefault("identity.username", "")
	setWebSocketDefaults(v)
	v.SetDefault("members.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-client")
	v.SetDefault("log.file", "chat-client.log")

	// Override from environment
	v.BindEnv("server_url", "CHAT_SERVER_URL")
	v.BindEnv("room_id", "CHAT_ROOM_ID")
	v.BindEnv("identity.token", "CHAT_TOKEN")
	v.BindEnv("identity.secret", "CHAT_JWT_SECRET")
	v.BindEnv("identity.id", "CHAT_USER_ID")
	v.BindEnv("identity.username", "CHAT_USERNAME")
	v.BindEnv("log.level", "CHAT_LOG_LEVEL")
	v.BindEnv("log.file", "CHAT_LOG_FILE")

	return v, nil
}

// ClientFromViper decodes v into a Client.
func ClientFromViper(v *viper.Viper) (*Client, error) {
	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode client config: %w", err)
	}

	// Parse durations
	cfg.WebSocket = parseWebSocket(v, cfg.WebSocket)
	cfg.Members.Timeout = parseDuration(v, "members.timeout", 10*time.Second)

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is required")
	}
	return &cfg, nil
}

// LoadClient reads the client configuration from configPath and the
// environment.
func LoadClient(configPath string) (*Client, error) {
	v, err := NewClientViper(configPath)
	if err != nil {
		return nil, err
	}
	return ClientFromViper(v)
}

// LoadDevServer reads the dev server configuration.
func LoadDevServer(configPath string) (*DevServer, error) {
	v, err := pkgconfig.Load(configPath, "chat-devserver", "DEVSERVER")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.secret", "dev-secret")
	v.SetDefault("auth.token_duration", "24h")
	v.SetDefault("auth.issuer", "chat-devserver")
	setWebSocketDefaults(v)
	def := pubsub.DefaultConfig()
	v.SetDefault("pubsub.driver", def.Driver)
	v.SetDefault("pubsub.buffer", def.Buffer)
	v.SetDefault("pubsub.redis.address", def.Redis.Address)
	v.SetDefault("pubsub.redis.password", "")
	v.SetDefault("pubsub.redis.db", 0)
	v.SetDefault("pubsub.redis.pool_size", def.Redis.PoolSize)
	v.SetDefault("pubsub.redis.read_timeout", def.Redis.ReadTimeout.String())
	v.SetDefault("pubsub.redis.write_timeout", def.Redis.WriteTimeout.String())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-devserver")
	v.SetDefault("log.file", "")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.secret", "JWT_SECRET")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg DevServer
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode devserver config: %w", err)
	}

	cfg.WebSocket = parseWebSocket(v, cfg.WebSocket)
	cfg.Auth.TokenDuration = parseDuration(v, "auth.token_duration", 24*time.Hour)
	cfg.PubSub.Redis.ReadTimeout = parseDuration(v, "pubsub.redis.read_timeout", def.Redis.ReadTimeout)
	cfg.PubSub.Redis.WriteTimeout = parseDuration(v, "pubsub.redis.write_timeout", def.Redis.WriteTimeout)

	return &cfg, nil
}

func setWebSocketDefaults(v *viper.Viper) {
	def := channel.DefaultConfig()
	v.SetDefault("websocket.ping_interval", def.PingInterval.String())
	v.SetDefault("websocket.pong_wait", def.PongWait.String())
	v.SetDefault("websocket.write_wait", def.WriteWait.String())
	v.SetDefault("websocket.handshake_timeout", def.HandshakeTimeout.String())
	v.SetDefault("websocket.max_message_size", def.MaxMessageSize)
	v.SetDefault("websocket.send_buffer", def.SendBuffer)
}

func parseWebSocket(v *viper.Viper, ws channel.Config) channel.Config {
	def := channel.DefaultConfig()
	ws.PingInterval = parseDuration(v, "websocket.ping_interval", def.PingInterval)
	ws.PongWait = parseDuration(v, "websocket.pong_wait", def.PongWait)
	ws.WriteWait = parseDuration(v, "websocket.write_wait", def.WriteWait)
	ws.HandshakeTimeout = parseDuration(v, "websocket.handshake_timeout", def.HandshakeTimeout)
	return ws
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
