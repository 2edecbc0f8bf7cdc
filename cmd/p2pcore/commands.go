package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-p2pcore/internal/core/identity"
)

var idKeyFile string

// idCmd 显示节点 ID
var idCmd = &cobra.Command{
	Use:   "id",
	Short: "显示节点 ID",
	Long: `显示密钥文件对应的节点 ID，文件不存在时生成新密钥并保存。
未指定密钥文件时使用配置中的身份设置。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadGlobalConfig()
		if err != nil {
			return err
		}
		if idKeyFile != "" {
			cfg.Identity = cfg.Identity.WithKeyFile(idKeyFile)
		}

		var id *identity.Identity
		switch {
		case len(cfg.Identity.Seed) > 0:
			id, err = identity.FromSeed(cfg.Identity.Seed)
		case cfg.Identity.KeyFile != "":
			id, err = identity.LoadOrCreate(cfg.Identity.KeyFile)
		default:
			return errors.New("no identity configured: pass --identity or set identity.key_file")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.PeerID())
		return nil
	},
}

// configCmd 输出合成后的配置
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "输出合成后的配置（JSON）",
	Long:  "按配置文件、预设和环境变量合成配置并输出，可作为配置文件模板。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadGlobalConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		data, err := cfg.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	idCmd.Flags().StringVar(&idKeyFile, "identity", "", "身份密钥文件路径")
}
