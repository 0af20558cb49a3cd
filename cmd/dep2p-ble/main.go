// Package main 提供 dep2p-ble 命令行入口
//
// 命令行使用模拟设备驱动 BLE 传输层，用于演示和调试设备注册表：
//
//	dep2p-ble run --peers 5
//	dep2p-ble run --config ble.yaml --log logs/ble.log
//	dep2p-ble config > ble.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-dep2p-ble/pkg/lib/log"
)

var logger = log.Logger("dep2p-ble/cmd")

// globalFlags 全局标志
var globalFlags struct {
	ConfigFile string // 配置文件路径（.yaml / .yml / .json）
}

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "dep2p-ble",
	Short: "DeP2P BLE 传输层调试工具",
	Long: `dep2p-ble - DeP2P BLE 传输层调试工具

使用模拟设备驱动 BLE 传输层：模拟设备经历 连接 → 识别 → 数据收发 → 断开
的完整生命周期，用于观察设备注册表的行为。

配置优先级：命令行参数 > 配置文件 > 默认值。`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "配置文件路径 (.yaml/.yml/.json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
