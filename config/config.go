package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppID 用户数据目录名
const AppID = "go-knowledge"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type StorageConfig struct {
	Dir  string `yaml:"dir"`  // 用户数据目录，为空时使用系统配置目录
	Name string `yaml:"name"` // 配置文件名（不含扩展名）
}

type DatabaseConfig struct {
	File string `yaml:"file"` // 位于 data.databasePath 下
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load 加载配置：默认值 -> YAML 文件 -> .env -> 环境变量
func Load(configPath string) (*Config, error) {
	// 默认配置
	cfg := &Config{
		Server: ServerConfig{
			Port: "3000",
			Mode: "debug",
		},
		Storage: StorageConfig{
			Name: "app-config",
		},
		Database: DatabaseConfig{
			File: "chat.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	// 如果配置文件存在,读取配置
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		slog.Info("配置文件不存在, 使用默认配置", "path", configPath)
	} else {
		return nil, err
	}

	// .env 不覆盖已有的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// 环境变量覆盖配置
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}
	if dir := os.Getenv("APP_DATA_DIR"); dir != "" {
		cfg.Storage.Dir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if strings.TrimSpace(c.Storage.Name) == "" || strings.ContainsAny(c.Storage.Name, `/\`) {
		return fmt.Errorf("storage.name %q is not a plain file name", c.Storage.Name)
	}
	if strings.TrimSpace(c.Database.File) == "" {
		return errors.New("database.file is required")
	}
	return nil
}

// UserDataDir 解析用户数据目录
func (c *Config) UserDataDir() (string, error) {
	if c.Storage.Dir != "" {
		return filepath.Abs(c.Storage.Dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, AppID), nil
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}
