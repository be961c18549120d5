package transport

import (
	"net"
	"strings"
)

// vpnInterfacePrefixes are common virtual/tunnel interface name prefixes
// across platforms whose presence suggests host ICE candidates will not
// be reachable from the SFU, so relay should be preferred.
var vpnInterfacePrefixes = []string{
	"tun", "tap", "ppp", "wg", "utun", "ipsec", "ztun", "zt",
}

// cgnatBlock is 100.64.0.0/10, the shared address space RFC 6598
// reserves for carrier-grade NAT; a host primarily addressed there is
// unlikely to complete a direct ICE connection.
var cgnatBlock = mustParseCIDR("100.64.0.0/10")

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// ShouldForceRelay applies a supplementary heuristic beyond spec
// §4.2's explicit Firefox+TURN rule: hosts behind a VPN tunnel
// interface or carrier-grade NAT rarely complete direct ICE
// connectivity, so force TURN relay for them too.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		for _, prefix := range vpnInterfacePrefixes {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if cgnatBlock.Contains(ipNet.IP) {
				return true
			}
		}
	}

	return false
}
