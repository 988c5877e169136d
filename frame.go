package hpgp

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Wire-layout constants. See SPEC_FULL.md §2 for the byte-exact layout this
// module commits to (the distilled spec leaves the vendor header's bit
// packing to the implementer).
const (
	macLen           = 6
	l2HeaderSize     = macLen + macLen + 2 /*ethertype*/ + 2 /*padding*/ + 4 /*spi*/
	vendorHeaderSize = 4
	mgmtHeaderSize   = 8
	HeaderSize       = l2HeaderSize + vendorHeaderSize + mgmtHeaderSize
	PacketCap        = 1514
	MinFrameSize     = 64
	MaxPayload       = PacketCap - HeaderSize
)

// msg_id class bits (low 2 bits of msg_id).
const (
	classREQ  uint16 = 0b00
	classCNF  uint16 = 0b01
	classIND  uint16 = 0b10
	classRESP uint16 = 0b11
)

// DLinkReadyInd is the explicit exception: structurally classed as REQ but
// always routed to the indication tier.
const DLinkReadyInd uint16 = 0x0F00 | uint16(classREQ)

// msgClass returns the low-2-bit class of a msg_id.
func msgClass(msgID uint16) uint16 { return msgID & 0x3 }

// isIndication reports whether msgID belongs to the indication tier, per
// SPEC_FULL's tier-routing rule (spec.md §4.4): the explicit D_LINK_READY_IND
// exception, or the IND class bits.
func isIndication(msgID uint16) bool {
	return msgID == DLinkReadyInd || msgClass(msgID) == classIND
}

// Legacy firmware-loader status codes (spec.md §6).
const (
	statusOK                 uint8 = 0
	statusRetvalFail         uint8 = 1
	statusInvalidReq         uint8 = 2
	statusMemError           uint8 = 3
	statusInvalidMode        uint8 = 4
	statusInternalError      uint8 = 5
	statusRspMaxLenExceeded  uint8 = 6
	statusRetransmissionFlag uint8 = 7
	statusMapVSMBufIsLocked  uint8 = 21
	statusMapVSMBufIsInvalid uint8 = 25
	statusNoMemory           uint8 = 30
	statusBadParameter       uint8 = 31
	statusNotFound           uint8 = 32
	statusAccessDenied       uint8 = 33
	statusHWAbort            uint8 = 34
	statusGeneralError       uint8 = 35
)

// LegacyEtherType is the distinct EtherType for the bootloader-mode legacy
// firmware loader frame family.
const LegacyEtherType uint16 = 0x1200

// BootloaderMAC is the literal MAC address the legacy loader's acceptance
// filter additionally allows as a source, alongside broadcast and peer_mac.
var BootloaderMAC = net.HardwareAddr{0x00, 0xC5, 0xD9, 0x51, 0x00, 0x00}

// Packet is a fully-decoded control-plane frame as stored in the RX
// database. Raw holds the original bytes (header + payload, without any
// trailing padding).
type Packet struct {
	DstMAC     net.HardwareAddr
	SrcMAC     net.HardwareAddr
	EtherType  uint16
	MsgID      uint16
	ReqID      uint16
	FragIdx    uint8
	NumFrags   uint8
	Fmsn       uint8
	DataPath   bool
	SessionID  uint16
	StatusCode uint8
	Flags      uint8
	Payload    []byte
	Raw        []byte
}

// FrameParams are the fields BuildFrame needs beyond the payload bytes.
type FrameParams struct {
	DstMAC     net.HardwareAddr
	SrcMAC     net.HardwareAddr
	EtherType  uint16
	MsgID      uint16
	ReqID      uint16
	FragIdx    uint8
	NumFrags   uint8
	Fmsn       uint8
	DataPath   bool
	SessionID  uint16
	StatusCode uint8
	Flags      uint8
}

// BuildFrame serializes p and payload into a single control-plane frame,
// ready for Transport.Send. The vendor/management header layout follows
// SPEC_FULL.md §2.
func BuildFrame(p FrameParams, payload []byte) ([]byte, error) {
	if len(p.DstMAC) != macLen || len(p.SrcMAC) != macLen {
		return nil, fmt.Errorf("%w: mac address must be %d bytes", ErrBadParameter, macLen)
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrBadParameter, MaxPayload)
	}
	if p.FragIdx > 0xF || p.NumFrags > 0xF || p.Fmsn > 0xF {
		return nil, fmt.Errorf("%w: fragment fields must fit in 4 bits", ErrBadParameter)
	}

	buf := make([]byte, HeaderSize+len(payload))
	copy(buf[0:6], p.DstMAC)
	copy(buf[6:12], p.SrcMAC)
	binary.BigEndian.PutUint16(buf[12:14], p.EtherType)
	// buf[14:16] padding left zero
	// buf[16:20] spi_header left zero: did/sid/priority/pad are not
	// exercised by this core's in-scope operations.

	vh := buf[l2HeaderSize : l2HeaderSize+vendorHeaderSize]
	binary.LittleEndian.PutUint16(vh[0:2], p.ReqID)
	vh[2] = (p.FragIdx << 4) | (p.NumFrags & 0xF)
	var b3 uint8 = p.Fmsn << 4
	if p.DataPath {
		b3 |= 0x1
	}
	vh[3] = b3

	mh := buf[l2HeaderSize+vendorHeaderSize:]
	mh[0] = p.Flags
	binary.LittleEndian.PutUint16(mh[1:3], p.MsgID)
	binary.LittleEndian.PutUint16(mh[3:5], p.SessionID)
	binary.LittleEndian.PutUint16(mh[5:7], uint16(len(payload)))
	mh[7] = p.StatusCode

	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// ParseFrame decodes a raw received frame into a Packet. It returns
// ErrGeneralError on any length mismatch, matching spec.md §7's "malformed
// frame" taxonomy entry.
func ParseFrame(raw []byte) (*Packet, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: frame shorter than header", ErrGeneralError)
	}

	vh := raw[l2HeaderSize : l2HeaderSize+vendorHeaderSize]
	mh := raw[l2HeaderSize+vendorHeaderSize : HeaderSize]

	length := binary.LittleEndian.Uint16(mh[5:7])
	if HeaderSize+int(length) > len(raw) {
		return nil, fmt.Errorf("%w: declared length exceeds frame size", ErrGeneralError)
	}

	p := &Packet{
		DstMAC:     net.HardwareAddr(append([]byte(nil), raw[0:6]...)),
		SrcMAC:     net.HardwareAddr(append([]byte(nil), raw[6:12]...)),
		EtherType:  binary.BigEndian.Uint16(raw[12:14]),
		ReqID:      binary.LittleEndian.Uint16(vh[0:2]),
		FragIdx:    vh[2] >> 4,
		NumFrags:   vh[2] & 0xF,
		Fmsn:       vh[3] >> 4,
		DataPath:   vh[3]&0x1 != 0,
		Flags:      mh[0],
		MsgID:      binary.LittleEndian.Uint16(mh[1:3]),
		SessionID:  binary.LittleEndian.Uint16(mh[3:5]),
		StatusCode: mh[7],
		Payload:    append([]byte(nil), raw[HeaderSize:HeaderSize+int(length)]...),
		Raw:        append([]byte(nil), raw[:HeaderSize+int(length)]...),
	}
	return p, nil
}

// IsControlPath reports whether the packet belongs to the control plane
// (as opposed to a streaming data-plane payload, which the RX loop drops
// per spec.md §4.5 step 3).
func (p *Packet) IsControlPath() bool { return !p.DataPath }
