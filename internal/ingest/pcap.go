package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReadPCAP replays detector frames captured as UDP datagrams. Only packets
// whose UDP destination port equals port are decoded; a port of 0 accepts
// every UDP packet. Non-UDP packets are skipped.
func ReadPCAP(ctx context.Context, r io.Reader, port int, fn Handler) (Stats, error) {
	var st Stats
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return st, fmt.Errorf("open pcap: %w", err)
	}
	src := gopacket.NewPacketSource(reader, reader.LinkType())
	src.NoCopy = true

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		packet, err := src.NextPacket()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("read packet %d: %w", st.Messages+1, err)
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		st.Messages++
		f, err := DecodeFrame(udp.Payload)
		if err != nil {
			st.Invalid++
			monitoring.Opsf("ingest: pcap packet %d: %v", st.Messages, err)
			continue
		}
		st.Frames++
		if err := fn(f); err != nil {
			return st, fmt.Errorf("pcap packet %d: %w", st.Messages, err)
		}
	}
}
