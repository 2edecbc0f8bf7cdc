package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-p2pcore"
	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
)

var logger = log.Logger("p2pcore/cmd")

// GlobalFlags 全局标志
//
// 命令行参数用于运行时覆盖，JSON 配置文件用于持久化配置。
// 优先级：命令行 > 环境变量（P2PCORE_*）> 预设 > 配置文件 > 默认值
type GlobalFlags struct {
	ConfigFile string // 配置文件路径
	Preset     string // 预设名称
	LogLevel   string // 日志级别
	LogFormat  string // 日志格式
	LogFile    string // 日志文件
}

var (
	globalFlags GlobalFlags

	// logCloser 日志文件句柄，进程退出前关闭
	logCloser io.Closer
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "p2pcore",
	Short: "p2pcore 节点",
	Long: `p2pcore - 基于轮询模型的 P2P 连接核心

TCP 连接经过明文身份交换和多路复用协商（yamux/smux）后由 Swarm 驱动，
节点之间周期性交换身份信息。`,
	SilenceUsage: true,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&globalFlags.ConfigFile, "config", "c", "", "配置文件路径（JSON）")
	pf.StringVar(&globalFlags.Preset, "preset", "", "预设配置 (local/server)")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	pf.StringVar(&globalFlags.LogFormat, "log-format", "", "日志格式 (text/json)")
	pf.StringVar(&globalFlags.LogFile, "log", "", "日志文件路径")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(idCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd 显示版本
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), p2pcore.VersionInfo())
	},
}

// loadGlobalConfig 按优先级合成配置（不含子命令自己的标志）
func loadGlobalConfig() (*config.Config, error) {
	cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		return nil, err
	}

	envPresetName := applyEnvOverrides(cfg)
	presetName := globalFlags.Preset
	if presetName == "" {
		presetName = envPresetName
	}
	if presetName != "" {
		if !p2pcore.IsValidPreset(presetName) {
			return nil, fmt.Errorf("unknown preset: %s", presetName)
		}
		if err := config.ApplyPreset(cfg, presetName); err != nil {
			return nil, err
		}
	}

	if globalFlags.LogLevel != "" {
		cfg.Log.Level = globalFlags.LogLevel
	}
	if globalFlags.LogFormat != "" {
		cfg.Log.Format = globalFlags.LogFormat
	}
	if globalFlags.LogFile != "" {
		cfg.Log.File = globalFlags.LogFile
	}
	return cfg, nil
}

// setupLogging 根据配置设置全局日志输出
func setupLogging(lc config.LogConfig) error {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	format := log.FormatText
	if lc.Format == string(log.FormatJSON) {
		format = log.FormatJSON
	}

	if lc.File == "" {
		log.Setup(os.Stderr, level, format)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(lc.File), 0750); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}
	f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.Setup(f, level, format)
	logCloser = f
	return nil
}
