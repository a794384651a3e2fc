package ingest

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeUDPPacket appends an Ethernet/IPv4/UDP packet carrying payload.
func writeUDPPacket(t *testing.T, w *pcapgo.Writer, ts time.Time, dstPort int, payload []byte) {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 1, 10),
		DstIP:    net.IPv4(192, 168, 1, 20),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))

	data := buf.Bytes()
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data))
}

func TestReadPCAP(t *testing.T) {
	var capture bytes.Buffer
	w := pcapgo.NewWriter(&capture)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	ts := time.Unix(1750719826, 0)
	writeUDPPacket(t, w, ts, 5600, []byte(`{"ts": 1750719826.0, "seq": 1, "detections": []}`))
	writeUDPPacket(t, w, ts, 9999, []byte(`{"ts": 1750719826.1, "seq": 2, "detections": []}`))
	writeUDPPacket(t, w, ts, 5600, []byte(`{"seq": 3}`))
	writeUDPPacket(t, w, ts, 5600, []byte(`{"ts": 1750719826.3, "seq": 4, "detections": []}`))

	var seqs []int64
	st, err := ReadPCAP(context.Background(), bytes.NewReader(capture.Bytes()), 5600, func(f Frame) error {
		seqs = append(seqs, f.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, seqs)
	assert.Equal(t, Stats{Messages: 3, Frames: 2, Invalid: 1}, st)

	// Port 0 accepts every UDP packet.
	seqs = nil
	_, err = ReadPCAP(context.Background(), bytes.NewReader(capture.Bytes()), 0, func(f Frame) error {
		seqs = append(seqs, f.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, seqs)
}

func TestReadPCAPBadHeader(t *testing.T) {
	_, err := ReadPCAP(context.Background(), bytes.NewReader([]byte("not a pcap file")), 0, func(Frame) error { return nil })
	assert.Error(t, err)
}
