package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-p2pcore"
)

// runFlags run 子命令标志
type runFlags struct {
	Listen      []string
	Dial        []string
	Identity    string
	MetricsAddr string
}

var runOpts runFlags

// runCmd 启动节点
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动节点",
	Long: `启动节点，监听配置的地址，拨号已知节点和 --dial 指定的目标，
并记录连接与身份交换事件，直到收到 SIGINT/SIGTERM。`,
	Example: `  p2pcore run --preset local
  p2pcore run --listen /ip4/0.0.0.0/tcp/4001 --dial /ip4/10.0.0.2/tcp/4001/p2p/<id>`,
	Args: cobra.NoArgs,
	RunE: runNode,
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVarP(&runOpts.Listen, "listen", "l", nil, "监听地址（可重复或逗号分隔）")
	f.StringSliceVarP(&runOpts.Dial, "dial", "d", nil, "启动后拨号的地址，可带 /p2p/<id> 后缀")
	f.StringVar(&runOpts.Identity, "identity", "", "身份密钥文件路径")
	f.StringVar(&runOpts.MetricsAddr, "metrics", "", "Prometheus 指标导出地址，例如 127.0.0.1:9464")
}

func runNode(cmd *cobra.Command, _ []string) error {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}
	if len(runOpts.Listen) > 0 {
		cfg.Transport = cfg.Transport.WithListenAddrs(runOpts.Listen...)
	}
	if runOpts.Identity != "" {
		cfg.Identity = cfg.Identity.WithKeyFile(runOpts.Identity)
	}
	if runOpts.MetricsAddr != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.Addr = runOpts.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("启动 p2pcore 节点", "version", p2pcore.Version, "commit", p2pcore.GitCommit)
	node, err := p2pcore.Start(ctx, p2pcore.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	printNodeInfo(cmd, node)

	done := make(chan struct{})
	go func() {
		defer close(done)
		logEvents(node.Events())
	}()

	for _, target := range runOpts.Dial {
		if err := dialTarget(node, target); err != nil {
			logger.Warn("拨号失败", "target", target, "error", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "节点已启动，按 Ctrl+C 退出")
	<-ctx.Done()

	fmt.Fprintln(cmd.OutOrStdout(), "\n正在关闭节点...")
	err = node.Close()
	<-done
	return err
}

// dialTarget 拨号一个目标
//
// 带 /p2p/<id> 后缀时按节点拨号并校验对端身份，否则直接拨号地址。
func dialTarget(node *p2pcore.Node, target string) error {
	addr, id, ok := strings.Cut(target, "/p2p/")
	if !ok {
		return node.Dial(target)
	}
	peer, err := p2pcore.ParsePeerID(id)
	if err != nil {
		return err
	}
	return node.Connect(peer, addr)
}

// logEvents 记录节点事件，直到通道关闭
func logEvents(events <-chan p2pcore.Event) {
	for ev := range events {
		switch ev.Kind {
		case p2pcore.EventConnectionEstablished:
			logger.Info("连接已建立", "peer", ev.Peer, "remote", ev.Point.RemoteAddr())
		case p2pcore.EventConnectionClosed:
			logger.Info("连接已关闭", "peer", ev.Peer, "error", ev.Err)
		case p2pcore.EventDialError:
			logger.Warn("拨号失败", "peer", ev.Peer, "addr", ev.Addr, "error", ev.Err)
		case p2pcore.EventIncomingConnectionError:
			logger.Warn("入站连接失败", "error", ev.Err)
		case p2pcore.EventNewListenAddr:
			logger.Info("新监听地址", "addr", ev.Addr)
		case p2pcore.EventListenerClosed:
			logger.Info("监听已关闭", "addr", ev.Addr, "error", ev.Err)
		case p2pcore.EventBehaviour:
			logIdentifyEvent(ev.Behaviour)
		}
	}
}

func logIdentifyEvent(ev p2pcore.IdentifyEvent) {
	if ev.Kind == p2pcore.IdentifyError {
		logger.Warn("身份交换失败", "peer", ev.Peer, "error", ev.Err)
		return
	}
	logger.Info("身份交换完成",
		"peer", ev.Peer,
		"agent", ev.Info.AgentVersion,
		"protocol", ev.Info.ProtocolVersion,
		"listen", ev.Info.ListenAddrs,
		"observed", ev.ObservedAddr)
}

// printNodeInfo 打印节点信息
func printNodeInfo(cmd *cobra.Command, node *p2pcore.Node) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "p2pcore %s\n", p2pcore.Version)
	fmt.Fprintf(out, "  节点 ID: %s\n", node.ID())
	for _, a := range node.FullAddrs() {
		fmt.Fprintf(out, "  地址:    %s\n", a)
	}
	fmt.Fprintln(out)
}
