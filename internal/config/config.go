package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath  = "config.toml"
	DefaultHTTPAddr    = ":3000"
	DefaultPGHost      = "127.0.0.1"
	DefaultPGPort      = 5432
	DefaultPGUser      = "postgres"
	DefaultPGDatabase  = "linerelay"
	DefaultPGSSLMode   = "disable"
	DefaultReplyWindow = 25 * time.Second
	DefaultDifyTimeout = 60 * time.Second
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Relay    RelayConfig    `toml:"relay"`
	Storage  StorageConfig  `toml:"storage"`
	Mail     MailConfig     `toml:"mail"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RelayConfig tunes the webhook-to-Dify relay path.
type RelayConfig struct {
	// ReplyWindowSeconds bounds how long after receipt a LINE reply token
	// is still used; past it the relay pushes instead.
	ReplyWindowSeconds int `toml:"reply_window_seconds"`
	// DifyTimeoutSeconds is the deadline for a single blocking Dify call.
	DifyTimeoutSeconds int    `toml:"dify_timeout_seconds"`
	FallbackText       string `toml:"fallback_text"`
	TimeoutText        string `toml:"timeout_text"`
}

func (c RelayConfig) ReplyWindow() time.Duration {
	if c.ReplyWindowSeconds <= 0 {
		return DefaultReplyWindow
	}
	return time.Duration(c.ReplyWindowSeconds) * time.Second
}

func (c RelayConfig) DifyTimeout() time.Duration {
	d := time.Duration(c.DifyTimeoutSeconds) * time.Second
	if d < 10*time.Second {
		return DefaultDifyTimeout
	}
	if d > 120*time.Second {
		return 120 * time.Second
	}
	return d
}

type StorageConfig struct {
	Bucket string `toml:"bucket"`
	Region string `toml:"region"`
}

type MailConfig struct {
	Provider string        `toml:"provider"` // "smtp" or "mailgun"
	From     string        `toml:"from"`
	SMTP     SMTPConfig    `toml:"smtp"`
	Mailgun  MailgunConfig `toml:"mailgun"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Security string `toml:"security"` // tls, starttls, none
}

type MailgunConfig struct {
	Domain string `toml:"domain"`
	APIKey string `toml:"api_key"`
	Region string `toml:"region"` // us or eu
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Relay: RelayConfig{
			ReplyWindowSeconds: int(DefaultReplyWindow / time.Second),
			DifyTimeoutSeconds: int(DefaultDifyTimeout / time.Second),
			FallbackText:       "申し訳ありません。現在応答できません。しばらくしてからもう一度お試しください。",
			TimeoutText:        "応答がタイムアウトしました。しばらくしてからもう一度お試しください。",
		},
		Storage: StorageConfig{
			Region: "ap-northeast-1",
		},
		Mail: MailConfig{
			Provider: "smtp",
			From:     "noreply@nexthr.jp",
			SMTP: SMTPConfig{
				Port:     587,
				Security: "starttls",
			},
			Mailgun: MailgunConfig{
				Region: "us",
			},
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
