// Package config собирает настройки процесса из флагов, .env и окружения.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyBotToken          = "BOT_TOKEN"
	KeyPostgresConn      = "POSTGRES_CONN"
	KeyServerAddress     = "SERVER_ADDRESS"
	KeyAdminIDs          = "ADMIN_IDS"
	KeySessionDir        = "SESSION_DIR"
	KeySendTimeout       = "SEND_TIMEOUT"
	KeyQueryTimeout      = "QUERY_TIMEOUT"
	KeyFanoutParallelism = "FANOUT_PARALLELISM"
	KeyLogLevel          = "LOG_LEVEL"
	KeyHTTPOnly          = "HTTP_ONLY"
)

type Config struct {
	BotToken          string
	PostgresConn      string
	ServerAddress     string
	AdminIDs          []int64
	SessionDir        string
	SendTimeout       time.Duration
	QueryTimeout      time.Duration
	FanoutParallelism int
	LogLevel          slog.Level
	// HTTPOnly - без опроса чата, события приходят только по HTTP
	HTTPOnly bool
}

// Load разбирает флаги, подгружает .env (если есть) и читает окружение.
// Флаги имеют приоритет над переменными окружения.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("printmatch", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	flags.String("addr", "", "HTTP listen address (overrides "+KeyServerAddress+")")
	flags.Bool("http-only", false, "serve HTTP events only, without polling the chat transport")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", *envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(KeyServerAddress, "0.0.0.0:8080")
	v.SetDefault(KeySendTimeout, "10s")
	v.SetDefault(KeyQueryTimeout, "5s")
	v.SetDefault(KeyFanoutParallelism, 8)
	v.SetDefault(KeyLogLevel, "info")
	if f := flags.Lookup("addr"); f.Changed {
		if err := v.BindPFlag(KeyServerAddress, f); err != nil {
			return nil, err
		}
	}
	if err := v.BindPFlag(KeyHTTPOnly, flags.Lookup("http-only")); err != nil {
		return nil, err
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BotToken:          v.GetString(KeyBotToken),
		PostgresConn:      v.GetString(KeyPostgresConn),
		ServerAddress:     v.GetString(KeyServerAddress),
		SessionDir:        v.GetString(KeySessionDir),
		SendTimeout:       v.GetDuration(KeySendTimeout),
		QueryTimeout:      v.GetDuration(KeyQueryTimeout),
		FanoutParallelism: v.GetInt(KeyFanoutParallelism),
		HTTPOnly:          v.GetBool(KeyHTTPOnly),
	}

	if cfg.PostgresConn == "" {
		return nil, fmt.Errorf("%s env variable is not set", KeyPostgresConn)
	}
	if cfg.BotToken == "" && !cfg.HTTPOnly {
		return nil, fmt.Errorf("%s env variable is not set (use --http-only to run without it)", KeyBotToken)
	}
	if cfg.FanoutParallelism < 1 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeyFanoutParallelism, cfg.FanoutParallelism)
	}

	ids, err := ParseAdminIDs(v.GetString(KeyAdminIDs))
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return cfg, nil
}

// ParseAdminIDs разбирает список через запятую. Неверная запись - ошибка,
// а не молчаливый пропуск.
func ParseAdminIDs(raw string) ([]int64, error) {
	ids := []int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%s: invalid participant id %q", KeyAdminIDs, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
