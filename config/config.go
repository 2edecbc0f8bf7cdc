// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 各组件通过 ConfigFromUnified 从中取出自己关心的部分。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Transport.ListenAddrs = []string{"/ip4/0.0.0.0/tcp/4001"}
//	cfg.Muxer.Protocols = []string{"/yamux/1.0.0"}
//
//	// 从 JSON 文件加载
//	cfg, err := config.LoadFile("p2pcore.json")
package config

// KnownPeer 已知节点配置
//
// 启动时直接拨号这些节点；行为层发出按节点拨号的请求时也从这里查找地址。
type KnownPeer struct {
	// PeerID 目标节点的 Peer ID
	PeerID string `json:"peer_id"`

	// Addrs 目标节点的地址列表
	// 格式为 multiaddr，例如 "/ip4/1.2.3.4/tcp/4001"
	Addrs []string `json:"addrs"`
}

// Config 是 p2pcore 的完整配置结构
//
// 配置按照功能模块组织：
//   - Identity: 身份和密钥
//   - Transport: 监听地址、拨号与握手超时
//   - Muxer: 多路复用缓冲与协议偏好
//   - Identify: 周期性身份交换
//   - Swarm: 连接驱动
//   - Metrics: Prometheus 指标导出
//   - Log: 日志输出
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Muxer 多路复用配置
	Muxer MuxerConfig `json:"muxer"`

	// Identify 身份交换协议配置
	Identify IdentifyConfig `json:"identify"`

	// Swarm 连接驱动配置
	Swarm SwarmConfig `json:"swarm"`

	// Metrics 指标导出配置
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log"`

	// KnownPeers 已知节点列表
	KnownPeers []KnownPeer `json:"known_peers,omitempty"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，可以直接通过 Validate。
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Muxer:     DefaultMuxerConfig(),
		Identify:  DefaultIdentifyConfig(),
		Swarm:     DefaultSwarmConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 按子配置顺序检查，返回遇到的第一个错误。
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Muxer.Validate(); err != nil {
		return err
	}
	if err := c.Identify.Validate(); err != nil {
		return err
	}
	if err := c.Swarm.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	for _, kp := range c.KnownPeers {
		if err := kp.Validate(); err != nil {
			return err
		}
	}
	return nil
}
