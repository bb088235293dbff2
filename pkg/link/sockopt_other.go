//go:build !unix

package link

import "net"

// Go enables SO_BROADCAST on datagram sockets by default on these platforms.
func listenBroadcastUDP(addr string) (*net.UDPConn, error) {
	if addr == "" {
		addr = ":0"
	}
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", laddr)
}
