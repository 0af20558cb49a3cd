package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dep2p/go-dep2p-ble/config"
	"github.com/dep2p/go-dep2p-ble/pkg/lib/log"
)

// configCmd 输出生效配置
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "输出生效的配置",
	Long: `输出合并默认值和配置文件之后的生效配置（YAML 格式）。

不指定 --config 时输出默认配置，可以作为配置文件模板：

  dep2p-ble config > ble.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(globalFlags.ConfigFile)
		if err != nil {
			return err
		}
		data, err := config.ToYAML(cfg)
		if err != nil {
			return fmt.Errorf("序列化配置: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// loadConfig 加载配置文件，路径为空时返回默认配置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewConfig(), nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置 %s: %w", path, err)
	}
	return cfg, nil
}

// setupLogging 按日志配置设置全局日志
//
// 配置了日志文件时同时输出到 stderr 和按大小轮转的文件。
// 返回的关闭函数用于退出时关闭日志文件。
func setupLogging(c config.LogConfig) (func() error, error) {
	level, ok := log.ParseLevel(c.Level)
	if !ok {
		return nil, fmt.Errorf("未知日志级别: %s", c.Level)
	}

	if c.File == "" {
		log.SetOutputWithLevel(os.Stderr, level, c.Format)
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutputWithLevel(io.MultiWriter(os.Stderr, rotator), level, c.Format)
	return rotator.Close, nil
}
