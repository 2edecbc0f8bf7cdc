// Package p2pcore 提供基于轮询模型的 P2P 连接核心
//
// 一条 TCP 连接依次经过明文身份交换、多路复用协商（yamux 或 smux），
// 之后由 Swarm 驱动：每个子流通过 multistream-select 协商协议，
// 结果交给 Behaviour。默认的 Behaviour 是周期性身份交换（identify）。
//
// # 快速开始
//
//	import "github.com/dep2p/go-p2pcore"
//
//	node, err := p2pcore.Start(ctx,
//	    p2pcore.WithPreset(p2pcore.PresetLocal),
//	    p2pcore.WithKnownPeer(peerID, "/ip4/127.0.0.1/tcp/4001"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	for ev := range node.Events() {
//	    if ev.Kind == p2pcore.EventBehaviour && ev.Behaviour.Kind == p2pcore.IdentifyIdentified {
//	        fmt.Println(ev.Behaviour.Peer, ev.Behaviour.Info.AgentVersion)
//	    }
//	}
//
// # 组件
//
//   - internal/core/transport/tcp: TCP 传输
//   - internal/core/upgrader: 安全握手与多路复用协商
//   - internal/core/muxer: 轮询式多路复用器（yamux、smux 引擎）
//   - internal/core/behaviour: Handler 与 Behaviour 编排
//   - internal/protocol/identify: 周期性身份交换
//   - internal/core/swarm: 连接群驱动
//
// # 配置
//
// 配置来源按优先级排列：选项 > 配置文件 > 预设 > 默认值。
// 完整字段见 config 包。
package p2pcore
