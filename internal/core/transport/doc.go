// Package transport 实现传输层抽象
//
// Transport 负责建立物理连接：拨号产生一个待完成的升级，
// 监听产生一个入站连接序列，序列中每个元素是待完成的升级加对端地址。
//
// # 核心职责
//
//   - 建立失败（地址无法解析、端口被占用）同步返回 *Error，携带原地址
//   - 已接受连接上的失败通过 PendingUpgrade 的错误返回
//   - 监听序列在没有连接时返回 Pending，耗尽后返回 Ended，从不返回错误
//   - NAT 地址转换：对端观测到的 IP + 本地监听端口
//
// # 支持的传输协议
//
//   - TCP: /ip4/.../tcp/...、/ip6/.../tcp/...（子包 tcp）
//
// # 使用示例
//
//	raw := tcp.New(tcp.DefaultConfig())
//	t := transport.WithUpgrader[*upgrader.UpgradedConn](raw, u)
//
//	ln, bound, err := t.Listen(types.MustMultiaddr("/ip4/127.0.0.1/tcp/0"))
//	pending, err := t.Dial(ctx, bound)
package transport
