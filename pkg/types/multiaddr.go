package types

import (
	ma "github.com/multiformats/go-multiaddr"
)

// ============================================================================
//                              Multiaddr - 统一地址类型
// ============================================================================

// Multiaddr 自描述多段网络地址
//
// 核心层只要求它可比较、可复制、可被传输层解析，
// 具体表示沿用 go-multiaddr。
//
// 格式示例：
//   - /ip4/127.0.0.1/tcp/4001
//   - /ip6/::1/tcp/4001
type Multiaddr = ma.Multiaddr

// NewMultiaddr 解析多地址字符串
func NewMultiaddr(s string) (Multiaddr, error) {
	return ma.NewMultiaddr(s)
}

// MustMultiaddr 解析多地址字符串，失败时 panic（仅用于常量和测试）
func MustMultiaddr(s string) Multiaddr {
	return ma.StringCast(s)
}

// MultiaddrsToStrings 转换为字符串列表
func MultiaddrsToStrings(addrs []Multiaddr) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// StringsToMultiaddrs 解析字符串列表，跳过无效地址
func StringsToMultiaddrs(ss []string) []Multiaddr {
	out := make([]Multiaddr, 0, len(ss))
	for _, s := range ss {
		if m, err := ma.NewMultiaddr(s); err == nil {
			out = append(out, m)
		}
	}
	return out
}
