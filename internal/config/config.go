package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Data        DataConfig        `mapstructure:"data"`
	Valuation   ValuationConfig   `mapstructure:"valuation"`
	Pressure    PressureConfig    `mapstructure:"pressure"`
	Positioning PositioningConfig `mapstructure:"positioning"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DataConfig names the input series the pipeline loads. Series maps go
// from series name to a CSV file under Dir. InvertedSeries marks series
// where a lower value means a stronger EUR. ForwardFillSeries maps slow-
// moving series to their forward-fill staleness cap in days; listed
// series opt in, 0 means the default cap, and unlisted series require an
// observation exactly on the reference date.
type DataConfig struct {
	Dir               string            `mapstructure:"dir"`
	SpotFile          string            `mapstructure:"spot_file"`
	PositioningFile   string            `mapstructure:"positioning_file"`
	MonthlySeries     map[string]string `mapstructure:"monthly_series"`
	WeeklySeries      map[string]string `mapstructure:"weekly_series"`
	InvertedSeries    []string          `mapstructure:"inverted_series"`
	IndicatorSeries   []string          `mapstructure:"indicator_series"`
	ForwardFillSeries map[string]int    `mapstructure:"forward_fill_series"`
}

type ValuationConfig struct {
	Alphas              []float64 `mapstructure:"alphas"`
	L1Ratios            []float64 `mapstructure:"l1_ratios"`
	CVFolds             int       `mapstructure:"cv_folds"`
	MinOOSR2            float64   `mapstructure:"min_oos_r2"`
	MaxRegimeDivergence float64   `mapstructure:"max_regime_divergence"`
}

type PressureConfig struct {
	Trees          int     `mapstructure:"trees"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	MaxDepth       int     `mapstructure:"max_depth"`
	Subsample      float64 `mapstructure:"subsample"`
	Lambda         float64 `mapstructure:"lambda"`
	Alpha          float64 `mapstructure:"alpha"`
	Seed           int64   `mapstructure:"seed"`
	HoldoutShare   float64 `mapstructure:"holdout_share"`
	AdoptionMargin float64 `mapstructure:"adoption_margin"`
	MinHitRate     float64 `mapstructure:"min_hit_rate"`
}

type PositioningConfig struct {
	PublicationLagDays int `mapstructure:"publication_lag_days"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "fxviews")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("data.spot_file", "eurusd_daily.csv")
	viper.SetDefault("data.positioning_file", "cftc_eur_net.csv")

	viper.SetDefault("valuation.alphas", []float64{0.00001, 0.0001, 0.001, 0.01, 0.1})
	viper.SetDefault("valuation.l1_ratios", []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.95, 0.99})
	viper.SetDefault("valuation.cv_folds", 5)
	viper.SetDefault("valuation.min_oos_r2", -0.05)
	viper.SetDefault("valuation.max_regime_divergence", 0.70)

	viper.SetDefault("pressure.trees", 200)
	viper.SetDefault("pressure.learning_rate", 0.05)
	viper.SetDefault("pressure.max_depth", 3)
	viper.SetDefault("pressure.subsample", 0.8)
	viper.SetDefault("pressure.lambda", 5.0)
	viper.SetDefault("pressure.alpha", 2.0)
	viper.SetDefault("pressure.seed", 42)
	viper.SetDefault("pressure.holdout_share", 0.25)
	viper.SetDefault("pressure.adoption_margin", 0.02)
	viper.SetDefault("pressure.min_hit_rate", 0.50)

	viper.SetDefault("positioning.publication_lag_days", 3)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Pressure.HoldoutShare <= 0 || cfg.Pressure.HoldoutShare >= 1 {
		return fmt.Errorf("pressure holdout share must be in (0,1), got %g", cfg.Pressure.HoldoutShare)
	}
	if len(cfg.Valuation.Alphas) == 0 || len(cfg.Valuation.L1Ratios) == 0 {
		return fmt.Errorf("valuation hyperparameter grid must not be empty")
	}
	return nil
}
