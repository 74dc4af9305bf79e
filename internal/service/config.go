// internal/service/config.go
package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// InputConfig 定义了输入表格的文件名 (相对 DataDir)
type InputConfig struct {
	Universe  string `mapstructure:"universe" validate:"required"`
	Prices    string `mapstructure:"prices" validate:"required"`
	Headlines string `mapstructure:"headlines" validate:"required"`
	Aliases   string `mapstructure:"aliases" validate:"required"`
}

// LeakageConfig 定义了防止未来信息泄露的截止时间
type LeakageConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required"`
	Cutoff   string `mapstructure:"cutoff" validate:"required"` // HH:MM 或 HH:MM:SS
}

// FeatureConfig 特征构建参数
type FeatureConfig struct {
	ZeroHeadlinePolicy string `mapstructure:"zero_headline_policy" validate:"oneof=neutral drop"`
	SMAPeriod          int    `mapstructure:"sma_period" validate:"gt=0"`
}

// EngineConfig 定义了训练/回测引擎参数
type EngineConfig struct {
	TrainFraction  float64 `mapstructure:"train_fraction" validate:"gt=0,lt=1"`
	CostBps        float64 `mapstructure:"cost_bps" validate:"gte=0"`
	Seed           uint64  `mapstructure:"seed"`
	BalanceSectors bool    `mapstructure:"balance_sectors"`
	ProbThreshold  float64 `mapstructure:"prob_threshold" validate:"gt=0,lt=1"`
	L2             float64 `mapstructure:"l2" validate:"gte=0"` // 1/C，与 sklearn 默认 C=1 一致
	MaxIterations  int     `mapstructure:"max_iterations" validate:"gt=0"`
}

// StatsConfig 统计检验参数
type StatsConfig struct {
	Annualization float64 `mapstructure:"annualization" validate:"gt=0"`
	MinActiveDays int     `mapstructure:"min_active_days" validate:"gte=0"`
	Confidence    float64 `mapstructure:"confidence" validate:"gt=0,lt=1"`
	VolWindow     int     `mapstructure:"vol_window" validate:"gt=1"`
}

// Config 流水线的全部配置
type Config struct {
	DataDir      string        `mapstructure:"data_dir" validate:"required"`
	OutputDir    string        `mapstructure:"output_dir" validate:"required"`
	LogLevel     string        `mapstructure:"log_level"`
	SeedUniverse bool          `mapstructure:"seed_universe"`
	Inputs       InputConfig   `mapstructure:"inputs"`
	Leakage      LeakageConfig `mapstructure:"leakage"`
	Features     FeatureConfig `mapstructure:"features"`
	Engine       EngineConfig  `mapstructure:"engine"`
	Stats        StatsConfig   `mapstructure:"stats"`
}

// setDefaults 默认值与原研究脚本保持一致
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("output_dir", "data/clean")
	v.SetDefault("log_level", "info")
	v.SetDefault("seed_universe", false)

	v.SetDefault("inputs.universe", "universe.csv")
	v.SetDefault("inputs.prices", "prices.csv")
	v.SetDefault("inputs.headlines", "headlines.csv")
	v.SetDefault("inputs.aliases", "aliases.csv")

	v.SetDefault("leakage.timezone", "America/New_York")
	v.SetDefault("leakage.cutoff", "15:30")

	v.SetDefault("features.zero_headline_policy", "neutral")
	v.SetDefault("features.sma_period", 5)

	v.SetDefault("engine.train_fraction", 0.8)
	v.SetDefault("engine.cost_bps", 10.0)
	v.SetDefault("engine.seed", 42)
	v.SetDefault("engine.balance_sectors", false)
	v.SetDefault("engine.prob_threshold", 0.5)
	v.SetDefault("engine.l2", 1.0)
	v.SetDefault("engine.max_iterations", 1000)

	v.SetDefault("stats.annualization", 252.0)
	v.SetDefault("stats.min_active_days", 30)
	v.SetDefault("stats.confidence", 0.95)
	v.SetDefault("stats.vol_window", 21)
}

// RegisterFlags 注册命令行参数，参数会覆盖配置文件
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "config", "directory containing config.yaml")
	fs.Bool("balance-sectors", false, "downsample every sector in the train partition to the smallest sector (outputs get a _balanced suffix)")
	fs.Bool("seed-universe", false, "write the built-in universe and alias tables into data_dir and exit")
	fs.String("data-dir", "", "override data_dir")
	fs.String("output-dir", "", "override output_dir")
}

// LoadConfig 读取并解析配置文件
// configPath 下找不到 config.yaml 时使用默认配置
func LoadConfig(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 设置配置文件的名称、类型和路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if fs != nil {
		bindings := map[string]string{
			"engine.balance_sectors": "balance-sectors",
			"seed_universe":          "seed-universe",
		}
		for key, flag := range bindings {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
		// 空字符串的目录参数不覆盖配置
		for key, flag := range map[string]string{"data_dir": "data-dir", "output_dir": "output-dir"} {
			if f := fs.Lookup(flag); f != nil && f.Changed && f.Value.String() != "" {
				v.Set(key, f.Value.String())
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 使用 go-playground/validator 校验字段，并检查截止时间和时区
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := ParseClock(c.Leakage.Cutoff); err != nil {
		return fmt.Errorf("invalid config: leakage.cutoff: %w", err)
	}
	if _, err := LoadLocation(c.Leakage.Timezone); err != nil {
		return fmt.Errorf("invalid config: leakage.timezone: %w", err)
	}
	return nil
}
