package hpgp

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Legacy firmware-loader command family (spec.md §6), built at interface
// level only: the distinct EtherType, command/status constants, and
// (msg_id, session_id) correlation. Per-command payload semantics (image
// chunking, checksum validation) are out of scope.
//
// Grounded on original_source/SDK/host/source/HLB_legacy_commands.c at the
// level the distillation preserves: command identity, framing, and the
// status-code remap table.

// LegacyCommand identifies a bootloader-mode command.
type LegacyCommand uint8

const (
	LegacySetMem         LegacyCommand = 1
	LegacyQueryDevice    LegacyCommand = 3
	LegacySetImageHeader LegacyCommand = 14
	LegacyExecuteCmd     LegacyCommand = 16
	LegacySetImageData   LegacyCommand = 19
	LegacyInitCopy       LegacyCommand = 31
	LegacyDecompress     LegacyCommand = 32
)

const legacyPayloadLimit = 1452

// LegacyTransport is the minimal send/receive surface the legacy loader
// needs; it is satisfied by the same Transport used for control-plane
// traffic, bound instead to LegacyEtherType.
type LegacyTransport interface {
	Send(frame []byte) error
	Recv(buf []byte, timeoutMs int) (int, RecvOutcome, error)
	LocalMAC() net.HardwareAddr
}

// LegacyLoader issues synchronous bootloader-mode commands correlated by
// (msg_id, session_id), per spec.md §6.
type LegacyLoader struct {
	tr      LegacyTransport
	peerMAC net.HardwareAddr
	timeout time.Duration
}

// NewLegacyLoader wraps tr (already bound to LegacyEtherType) for legacy
// command exchange with peerMAC. With a non-empty peerMAC, responses are
// accepted from broadcast, the bootloader's literal MAC, or peerMAC; with
// an empty peerMAC, any source is accepted (see acceptLegacySource).
func NewLegacyLoader(tr LegacyTransport, peerMAC net.HardwareAddr, timeout time.Duration) *LegacyLoader {
	if timeout <= 0 {
		timeout = DefaultLegacyTimeout
	}
	return &LegacyLoader{tr: tr, peerMAC: peerMAC, timeout: timeout}
}

// legacyFrame is the bootloader-mode frame layout: L2 header, then a
// command byte, session_id, status byte, and payload — a flatter shape
// than the control-plane frame, matching the loader's "interface level
// only" scope.
type legacyFrame struct {
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	Command   LegacyCommand
	SessionID uint16
	Status    uint8
	Payload   []byte
}

func buildLegacyFrame(f legacyFrame) ([]byte, error) {
	if len(f.Payload) > legacyPayloadLimit {
		return nil, fmt.Errorf("%w: legacy payload exceeds %d bytes", ErrBadParameter, legacyPayloadLimit)
	}
	buf := make([]byte, l2HeaderSize+4+len(f.Payload))
	copy(buf[0:6], f.DstMAC)
	copy(buf[6:12], f.SrcMAC)
	binary.BigEndian.PutUint16(buf[12:14], LegacyEtherType)
	buf[l2HeaderSize] = uint8(f.Command)
	binary.LittleEndian.PutUint16(buf[l2HeaderSize+1:l2HeaderSize+3], f.SessionID)
	buf[l2HeaderSize+3] = f.Status
	copy(buf[l2HeaderSize+4:], f.Payload)
	return buf, nil
}

func parseLegacyFrame(raw []byte) (*legacyFrame, error) {
	if len(raw) < l2HeaderSize+4 {
		return nil, fmt.Errorf("%w: legacy frame shorter than header", ErrGeneralError)
	}
	return &legacyFrame{
		DstMAC:    net.HardwareAddr(append([]byte(nil), raw[0:6]...)),
		SrcMAC:    net.HardwareAddr(append([]byte(nil), raw[6:12]...)),
		Command:   LegacyCommand(raw[l2HeaderSize]),
		SessionID: binary.LittleEndian.Uint16(raw[l2HeaderSize+1 : l2HeaderSize+3]),
		Status:    raw[l2HeaderSize+3],
		Payload:   append([]byte(nil), raw[l2HeaderSize+4:]...),
	}, nil
}

// legacyStatusToError applies the remap table from spec.md §6:
// RETRANSMISSION_FLAG is success-with-notice, MAP_VSM_BUF_IS_LOCKED maps to
// RESOURCE_IN_USE, INTERNAL_ERROR maps to BAD_STATE.
func legacyStatusToError(status uint8) error {
	switch status {
	case statusOK, statusRetransmissionFlag:
		return nil
	case statusMapVSMBufIsLocked:
		return ErrResourceInUse
	case statusInternalError:
		return ErrBadState
	case statusRetvalFail, statusInvalidReq, statusMemError, statusInvalidMode,
		statusRspMaxLenExceeded, statusMapVSMBufIsInvalid:
		return ErrGeneralError
	default:
		return ErrGeneralError
	}
}

// Execute sends a legacy command and blocks for the matching response,
// correlated by (command, session_id) standing in for spec.md's
// (msg_id, session_id). Acceptance uses the wider legacy filter
// (broadcast, peer, or the literal bootloader MAC).
func (l *LegacyLoader) Execute(ctx context.Context, dst net.HardwareAddr, cmd LegacyCommand, sessionID uint16, payload []byte) ([]byte, error) {
	frame, err := buildLegacyFrame(legacyFrame{
		DstMAC:    dst,
		SrcMAC:    l.tr.LocalMAC(),
		Command:   cmd,
		SessionID: sessionID,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}
	if err := l.tr.Send(frame); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(l.timeout)
	buf := make([]byte, PacketCap)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: legacy exchange cancelled", ErrBadState)
		default:
		}

		n, outcome, err := l.tr.Recv(buf, int(remaining/time.Millisecond)+1)
		if err != nil {
			return nil, fmt.Errorf("%w: legacy recv: %v", ErrHWAbort, err)
		}
		if outcome != RecvOK {
			continue
		}
		resp, err := parseLegacyFrame(buf[:n])
		if err != nil {
			continue
		}
		if !acceptLegacySource(resp.SrcMAC, l.peerMAC) {
			continue
		}
		if resp.Command != cmd || resp.SessionID != sessionID {
			continue
		}
		if err := legacyStatusToError(resp.Status); err != nil {
			return nil, err
		}
		return resp.Payload, nil
	}
}
