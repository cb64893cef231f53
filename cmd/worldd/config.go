package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/godyy/gutils/log"
	"github.com/godyy/gworld/world"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type LogConfig struct {
	// 日志级别 debug/info/warn/error
	Level string `yaml:"Level"`

	// 开发模式
	Development bool `yaml:"Development"`

	// 是否记录调用位置
	EnableCaller bool `yaml:"EnableCaller"`
}

type Config struct {
	Log   LogConfig    `yaml:"Log"`
	World world.Config `yaml:"World"`
}

// loadConfig 按扩展名读取 yaml 或 toml 配置文件
func loadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read config")
	}

	config := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, config)
	case ".toml":
		_, err = toml.Decode(string(b), config)
	default:
		return nil, errors.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "parse config %s", path)
	}

	return config, nil
}

func createLogger(c *LogConfig) (log.Logger, error) {
	lc := &log.Config{
		Level:           log.InfoLevel,
		EnableCaller:    c.EnableCaller,
		Development:     c.Development,
		EnableStdOutput: true,
	}

	switch strings.ToLower(c.Level) {
	case "", "info":
	case "debug":
		lc.Level = log.DebugLevel
	case "warn":
		lc.Level = log.WarnLevel
	case "error":
		lc.Level = log.ErrorLevel
	default:
		return nil, errors.Errorf("invalid log level %q", c.Level)
	}

	return log.CreateLogger(lc)
}
