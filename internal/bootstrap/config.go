package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort         string  `mapstructure:"SERVER_PORT"`
	SerialPort         string  `mapstructure:"SERIAL_PORT"`
	BaudRate           int     `mapstructure:"BAUD_RATE"`
	SerialResetDelayMs int     `mapstructure:"SERIAL_RESET_DELAY_MS"`
	CalibrationPath    string  `mapstructure:"CALIBRATION_PATH"`
	MoveSteps          int     `mapstructure:"MOVE_STEPS"`
	MoveDelayMs        int     `mapstructure:"MOVE_DELAY_MS"`
	MoveSettleMs       int     `mapstructure:"MOVE_SETTLE_MS"`
	HomeSteps          int     `mapstructure:"HOME_STEPS"`
	HomeDelayMs        int     `mapstructure:"HOME_DELAY_MS"`
	HomeSettleMs       int     `mapstructure:"HOME_SETTLE_MS"`
	EasyRandomProb     float64 `mapstructure:"EASY_RANDOM_PROB"`
	RedisUrl           string  `mapstructure:"REDIS_URL"`
	MongoUri           string  `mapstructure:"MONGO_URI"`
	MongoDatabase      string  `mapstructure:"MONGO_DATABASE"`
	IsLocalCors        bool    `mapstructure:"LOCAL_CORS"`
	RateLimitRps       int     `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int     `mapstructure:"RATE_LIMIT_BURST"`
	LogDevelopment     bool    `mapstructure:"LOG_DEVELOPMENT"`
}

var defaults = map[string]any{
	"SERVER_PORT":           "5000",
	"SERIAL_PORT":           "/dev/ttyACM0",
	"BAUD_RATE":             115200,
	"SERIAL_RESET_DELAY_MS": 2000,
	"CALIBRATION_PATH":      "config.json",
	"MOVE_STEPS":            25,
	"MOVE_DELAY_MS":         20,
	"MOVE_SETTLE_MS":        300,
	"HOME_STEPS":            20,
	"HOME_DELAY_MS":         20,
	"HOME_SETTLE_MS":        200,
	"EASY_RANDOM_PROB":      0.7,
	"REDIS_URL":             "",
	"MONGO_URI":             "",
	"MONGO_DATABASE":        "tictacarm",
	"LOCAL_CORS":            false,
	"RATE_LIMIT_RPS":        10,
	"RATE_LIMIT_BURST":      20,
	"LOG_DEVELOPMENT":       false,
}

// Setup reads cfgPath (a .env file) on top of the defaults. Environment
// variables override both; a missing file is not an error.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.MoveSteps <= 0 || cfg.HomeSteps <= 0 {
		return nil, fmt.Errorf("MOVE_STEPS (%d) and HOME_STEPS (%d) must be positive", cfg.MoveSteps, cfg.HomeSteps)
	}

	return &cfg, nil
}

func (c Config) MoveDelay() time.Duration  { return ms(c.MoveDelayMs) }
func (c Config) MoveSettle() time.Duration { return ms(c.MoveSettleMs) }
func (c Config) HomeDelay() time.Duration  { return ms(c.HomeDelayMs) }
func (c Config) HomeSettle() time.Duration { return ms(c.HomeSettleMs) }
func (c Config) SerialResetDelay() time.Duration {
	return ms(c.SerialResetDelayMs)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
