// Package identity classifies client addresses for audit output. The result
// is display-only: nothing here feeds routing or access decisions.
package identity

import (
	"net"
	"net/netip"
	"strings"
)

// RedactedPlaceholder 替换被隐藏的公网地址。
const RedactedPlaceholder = "(IP hidden)"

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// IsPrivate 判断地址是否属于 RFC1918 私有 IPv4 段。地址必须是完整的点分四段格式
// （可带 :port），IPv6 一律视为非私有。
func IsPrivate(address string) bool {
	addr, ok := parseIPv4(address)
	if !ok {
		return false
	}
	for _, prefix := range privateRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// DisplayAddress 返回写入审计日志的客户端地址。
func DisplayAddress(address string, redactPublicIP bool) string {
	if !redactPublicIP || IsPrivate(address) {
		return address
	}
	return RedactedPlaceholder
}

func parseIPv4(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, false
	}
	if strings.Count(raw, ":") == 1 {
		if host, _, err := net.SplitHostPort(raw); err == nil {
			raw = host
		}
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}
