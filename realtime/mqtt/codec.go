package mqtt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mochi-mqtt/server/v2/packets"
)

func encodePacket(pk packets.Packet) ([]byte, error) {
	pk.ProtocolVersion = 4
	buf := new(bytes.Buffer)
	var err error
	switch pk.FixedHeader.Type {
	case packets.Connect:
		err = pk.ConnectEncode(buf)
	case packets.Publish:
		err = pk.PublishEncode(buf)
	case packets.Puback:
		err = pk.PubackEncode(buf)
	case packets.Subscribe:
		err = pk.SubscribeEncode(buf)
	case packets.Unsubscribe:
		err = pk.UnsubscribeEncode(buf)
	case packets.Pingreq:
		err = pk.PingreqEncode(buf)
	case packets.Pingresp:
		err = pk.PingrespEncode(buf)
	case packets.Disconnect:
		err = pk.DisconnectEncode(buf)
	default:
		err = fmt.Errorf("realtime/mqtt: unsupported outbound packet type=%d", pk.FixedHeader.Type)
	}
	return buf.Bytes(), err
}

// write serializes pk onto conn. Write failures on an established session
// hand the connection to the reconnect path.
func (c *Client) write(conn net.Conn, pk packets.Packet) error {
	b, err := encodePacket(pk)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	_, err = conn.Write(b)
	_ = conn.SetWriteDeadline(time.Time{})
	if err != nil {
		go c.lost(conn, err)
	}
	return err
}

func readPacket(reader *bufio.Reader) (packets.Packet, error) {
	var pk packets.Packet
	header, err := reader.ReadByte()
	if err != nil {
		return pk, err
	}
	fh := packets.FixedHeader{}
	if err := fh.Decode(header); err != nil {
		return pk, err
	}
	remaining, _, err := packets.DecodeLength(reader)
	if err != nil {
		return pk, err
	}
	fh.Remaining = remaining
	data := make([]byte, remaining)
	if _, err := io.ReadFull(reader, data); err != nil {
		return pk, err
	}

	pk = packets.Packet{FixedHeader: fh, ProtocolVersion: 4}
	switch fh.Type {
	case packets.Connack:
		err = pk.ConnackDecode(data)
	case packets.Publish:
		err = pk.PublishDecode(data)
	case packets.Suback:
		err = pk.SubackDecode(data)
	case packets.Unsuback:
		err = pk.UnsubackDecode(data)
	case packets.Puback:
		err = pk.PubackDecode(data)
	}
	// Other packet types carry nothing the client acts on.
	return pk, err
}
