package main

import (
	"context"
	"fmt"
	"net"

	ma "github.com/multiformats/go-multiaddr"
)

// inboundPacket is one datagram read off the socket, queued for the
// single event-loop goroutine to hand to the engine - keeping
// session.Manager's dispatch and Tick on one goroutine, per §5's
// single-threaded cooperative model, while the actual socket read still
// happens on its own goroutine.
type inboundPacket struct {
	src ma.Multiaddr
	raw []byte
}

// udpTransport is the demo loopback transport promised by
// internal/transport's package doc: a plain net.UDPConn satisfying
// transport.UDPSender, feeding every inbound datagram into the engine's
// transport.Receiver. Relay and onion transports are left unconfigured -
// this binary only demonstrates the direct-UDP path.
type udpTransport struct {
	conn *net.UDPConn
	in   chan inboundPacket
}

func listenUDP(listenAddr string) (*udpTransport, error) {
	addr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return &udpTransport{conn: conn, in: make(chan inboundPacket, 256)}, nil
}

func (t *udpTransport) SendUDP(ctx context.Context, addr ma.Multiaddr, envelope []byte) error {
	ipStr, err := addr.ValueForProtocol(ma.P_IP4)
	if err != nil {
		return fmt.Errorf("udp_transport: address has no ip4 component: %w", err)
	}
	portStr, err := addr.ValueForProtocol(ma.P_UDP)
	if err != nil {
		return fmt.Errorf("udp_transport: address has no udp component: %w", err)
	}
	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(ipStr, portStr))
	if err != nil {
		return fmt.Errorf("udp_transport: resolve target: %w", err)
	}
	_, err = t.conn.WriteToUDP(envelope, dst)
	return err
}

// readLoop reads datagrams until ctx is cancelled or the socket closes,
// queuing each one on t.in for the event loop to dispatch. Runs on its own
// goroutine; the socket read itself is the only thing not serialized with
// Tick.
func (t *udpTransport) readLoop(ctx context.Context) {
	defer close(t.in)
	buf := make([]byte, 2048)
	for {
		n, src, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		srcAddr, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/%s/udp/%d", src.IP.String(), src.Port))
		if err != nil {
			continue
		}
		envelope := make([]byte, n)
		copy(envelope, buf[:n])
		select {
		case t.in <- inboundPacket{src: srcAddr, raw: envelope}:
		case <-ctx.Done():
			return
		}
	}
}

func (t *udpTransport) Close() error {
	return t.conn.Close()
}
