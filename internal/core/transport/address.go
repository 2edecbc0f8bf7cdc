package transport

import (
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// AddressTranslation 用对端观测到的 IP 替换监听地址的 IP
//
// 两个地址的第一段必须是同一族的 IP（ip4 或 ip6），其余部分取自 server。
// 例如 server=/ip4/0.0.0.0/tcp/4001，observed=/ip4/1.2.3.4/tcp/51000
// 得到 /ip4/1.2.3.4/tcp/4001。
func AddressTranslation(server, observed types.Multiaddr) (types.Multiaddr, bool) {
	if server == nil || observed == nil {
		return nil, false
	}
	sp := server.Protocols()
	op := observed.Protocols()
	if len(sp) == 0 || len(op) == 0 {
		return nil, false
	}
	code := sp[0].Code
	if code != ma.P_IP4 && code != ma.P_IP6 {
		return nil, false
	}
	if op[0].Code != code {
		return nil, false
	}

	serverIP, err := server.ValueForProtocol(code)
	if err != nil {
		return nil, false
	}
	observedIP, err := observed.ValueForProtocol(code)
	if err != nil {
		return nil, false
	}

	prefix := "/" + sp[0].Name + "/" + serverIP
	rest, ok := strings.CutPrefix(server.String(), prefix)
	if !ok {
		return nil, false
	}
	out, err := ma.NewMultiaddr("/" + sp[0].Name + "/" + observedIP + rest)
	if err != nil {
		return nil, false
	}
	return out, true
}
