package hpgp

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// This file implements the representative subset of C6 (request/confirm
// codec) and C7 (session send/receive pairs) described in SPEC_FULL.md §5:
// one operation per wire shape found in the corpus. Every family listed in
// msgid.go is recognized by the RX loop's tier routing and host mapping
// regardless of whether it has a dedicated codec here — per spec.md §1,
// per-operation codecs beyond this representative set are treated as an
// external, opaque concern.

// resolveTimeout returns the caller-supplied timeout override, or the
// session's configured default when none was given. Every Cnf/Ind
// receiver below takes an optional trailing time.Duration for this.
func resolveTimeout(cfg *Config, override []time.Duration) time.Duration {
	if len(override) > 0 {
		return override[0]
	}
	return cfg.recvTimeout
}

func msgFamilyOf(host HostMsgID) msgFamily {
	for _, f := range msgFamilies {
		if f.host == host {
			return f
		}
	}
	panic(fmt.Sprintf("hpgp: no msgFamily registered for host id %v", host))
}

// --- GetVersion: single-fragment req/cnf -----------------------------------

// DeviceVersion mirrors NSCM_GET_VERSION_CNF's payload.
type DeviceVersion struct {
	Major uint8
	Minor uint8
	Patch uint8
	Build uint16
}

func (v DeviceVersion) encode() []byte {
	b := make([]byte, 5)
	b[0] = v.Major
	b[1] = v.Minor
	b[2] = v.Patch
	binary.LittleEndian.PutUint16(b[3:5], v.Build)
	return b
}

func decodeDeviceVersion(b []byte) (DeviceVersion, error) {
	if len(b) < 5 {
		return DeviceVersion{}, fmt.Errorf("%w: short GetVersion payload", ErrGeneralError)
	}
	return DeviceVersion{
		Major: b[0],
		Minor: b[1],
		Patch: b[2],
		Build: binary.LittleEndian.Uint16(b[3:5]),
	}, nil
}

var getVersionFamily = msgFamilyOf(HostGetVersion)

// GetVersionReqSend transmits an NSCM_GET_VERSION_REQ.
func (s *Session) GetVersionReqSend(reqIDVal uint16) error {
	return s.sendRequest(reqID(getVersionFamily.base), reqIDVal, nil)
}

// GetVersionCnfReceive waits for the matching confirmation and decodes it.
func (s *Session) GetVersionCnfReceive(ctx context.Context, reqIDVal uint16, timeout ...time.Duration) (DeviceVersion, error) {
	pkt, err := s.recvConfirmation(ctx, cnfID(getVersionFamily.base), reqIDVal, resolveTimeout(s.cfg, timeout))
	if err != nil {
		return DeviceVersion{}, err
	}
	if err := statusToError(pkt.StatusCode); err != nil {
		return DeviceVersion{}, err
	}
	return decodeDeviceVersion(pkt.Payload)
}

// --- ReadMem / WriteMem: single-fragment req/cnf ---------------------------

// ReadMemArgs mirrors NSCM_READ_MEM_REQ's payload.
type ReadMemArgs struct {
	Address uint32
	Length  uint16
}

func (a ReadMemArgs) encode() []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint32(b[0:4], a.Address)
	binary.LittleEndian.PutUint16(b[4:6], a.Length)
	return b
}

var readMemFamily = msgFamilyOf(HostReadMem)

// ReadMemReqSend transmits an NSCM_READ_MEM_REQ.
func (s *Session) ReadMemReqSend(reqIDVal uint16, args ReadMemArgs) error {
	return s.sendRequest(reqID(readMemFamily.base), reqIDVal, args.encode())
}

// ReadMemCnfReceive waits for the matching confirmation and returns its raw
// memory payload.
func (s *Session) ReadMemCnfReceive(ctx context.Context, reqIDVal uint16, timeout ...time.Duration) ([]byte, error) {
	pkt, err := s.recvConfirmation(ctx, cnfID(readMemFamily.base), reqIDVal, resolveTimeout(s.cfg, timeout))
	if err != nil {
		return nil, err
	}
	if err := statusToError(pkt.StatusCode); err != nil {
		return nil, err
	}
	return pkt.Payload, nil
}

// WriteMemArgs mirrors NSCM_WRITE_MEM_REQ's payload.
type WriteMemArgs struct {
	Address uint32
	Data    []byte
}

func (a WriteMemArgs) encode() []byte {
	b := make([]byte, 4+len(a.Data))
	binary.LittleEndian.PutUint32(b[0:4], a.Address)
	copy(b[4:], a.Data)
	return b
}

var writeMemFamily = msgFamilyOf(HostWriteMem)

// WriteMemReqSend transmits an NSCM_WRITE_MEM_REQ.
func (s *Session) WriteMemReqSend(reqIDVal uint16, args WriteMemArgs) error {
	if len(args.Data) > MaxPayload-4 {
		return fmt.Errorf("%w: write payload too large", ErrBadParameter)
	}
	return s.sendRequest(reqID(writeMemFamily.base), reqIDVal, args.encode())
}

// WriteMemCnfReceive waits for the matching confirmation.
func (s *Session) WriteMemCnfReceive(ctx context.Context, reqIDVal uint16, timeout ...time.Duration) error {
	pkt, err := s.recvConfirmation(ctx, cnfID(writeMemFamily.base), reqIDVal, resolveTimeout(s.cfg, timeout))
	if err != nil {
		return err
	}
	return statusToError(pkt.StatusCode)
}

// --- GetAmpMap: multi-fragment confirmation --------------------------------

// AmpMap mirrors NSCM_GET_AMP_MAP_CNF's reassembled payload: a per-carrier
// amplitude map, large enough to usually span several fragments.
type AmpMap struct {
	Carriers []byte
}

var ampMapFamily = msgFamilyOf(HostGetAmpMap)

// GetAmpMapReqSend transmits an NSCM_GET_AMP_MAP_REQ.
func (s *Session) GetAmpMapReqSend(reqIDVal uint16) error {
	return s.sendRequest(reqID(ampMapFamily.base), reqIDVal, nil)
}

// GetAmpMapCnfReceive drains every fragment of the confirmation series and
// concatenates their payloads in index order, per spec.md §4's fragment
// reassembly listing.
func (s *Session) GetAmpMapCnfReceive(ctx context.Context, reqIDVal uint16, timeout ...time.Duration) (AmpMap, error) {
	frags, err := s.recvFragmentedConfirmation(ctx, cnfID(ampMapFamily.base), reqIDVal, resolveTimeout(s.cfg, timeout))
	if err != nil {
		return AmpMap{}, err
	}
	if err := statusToError(frags[0].StatusCode); err != nil {
		return AmpMap{}, err
	}

	buf := reassemblyBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer reassemblyBufPool.Put(buf)
	for _, f := range frags {
		buf.Write(f.Payload)
	}
	return AmpMap{Carriers: append([]byte(nil), buf.Bytes()...)}, nil
}

// reassemblyBufPool recycles the scratch buffer multi-fragment receivers
// use to concatenate payloads instead of allocating one per call.
var reassemblyBufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// --- ConnAdd: request/confirm/indication triple ----------------------------

// ConnAddArgs mirrors APCM_CONN_ADD_REQ's payload.
type ConnAddArgs struct {
	CSPEC uint16
}

func (a ConnAddArgs) encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, a.CSPEC)
	return b
}

// ConnAddResult mirrors APCM_CONN_ADD_CNF's payload.
type ConnAddResult struct {
	ConnectionID uint16
}

// ConnAddNotice mirrors APCM_CONN_ADD_IND's payload — an unsolicited
// notice the modem may emit when a peer joins the connection.
type ConnAddNotice struct {
	ConnectionID uint16
	StationMAC   [6]byte
}

var connAddFamily = msgFamilyOf(HostConnAdd)

// ConnAddReqSend transmits an APCM_CONN_ADD_REQ.
func (s *Session) ConnAddReqSend(reqIDVal uint16, args ConnAddArgs) error {
	return s.sendRequest(reqID(connAddFamily.base), reqIDVal, args.encode())
}

// ConnAddCnfReceive waits for the matching confirmation.
func (s *Session) ConnAddCnfReceive(ctx context.Context, reqIDVal uint16, timeout ...time.Duration) (ConnAddResult, error) {
	pkt, err := s.recvConfirmation(ctx, cnfID(connAddFamily.base), reqIDVal, resolveTimeout(s.cfg, timeout))
	if err != nil {
		return ConnAddResult{}, err
	}
	if err := statusToError(pkt.StatusCode); err != nil {
		return ConnAddResult{}, err
	}
	if len(pkt.Payload) < 2 {
		return ConnAddResult{}, fmt.Errorf("%w: short ConnAdd confirmation", ErrGeneralError)
	}
	return ConnAddResult{ConnectionID: binary.LittleEndian.Uint16(pkt.Payload[0:2])}, nil
}

// ConnAddIndReceive waits for an asynchronous APCM_CONN_ADD_IND.
func (s *Session) ConnAddIndReceive(ctx context.Context, timeout ...time.Duration) (ConnAddNotice, error) {
	pkt, err := s.recvIndication(ctx, indID(connAddFamily.base), resolveTimeout(s.cfg, timeout))
	if err != nil {
		return ConnAddNotice{}, err
	}
	if len(pkt.Payload) < 8 {
		return ConnAddNotice{}, fmt.Errorf("%w: short ConnAdd indication", ErrGeneralError)
	}
	var notice ConnAddNotice
	notice.ConnectionID = binary.LittleEndian.Uint16(pkt.Payload[0:2])
	copy(notice.StationMAC[:], pkt.Payload[2:8])
	return notice, nil
}

// --- Indication-only operations --------------------------------------------

// NewStaNotice mirrors APCM_GET_NEW_STA_IND's payload.
type NewStaNotice struct {
	StationMAC [6]byte
}

var getNewStaFamily = msgFamilyOf(HostGetNewSta)

// NewStaIndReceive waits for an asynchronous APCM_GET_NEW_STA_IND.
func (s *Session) NewStaIndReceive(ctx context.Context, timeout ...time.Duration) (NewStaNotice, error) {
	pkt, err := s.recvIndication(ctx, indID(getNewStaFamily.base), resolveTimeout(s.cfg, timeout))
	if err != nil {
		return NewStaNotice{}, err
	}
	if len(pkt.Payload) < 6 {
		return NewStaNotice{}, fmt.Errorf("%w: short NewSta indication", ErrGeneralError)
	}
	var notice NewStaNotice
	copy(notice.StationMAC[:], pkt.Payload[0:6])
	return notice, nil
}

// DLinkReadyIndReceive waits for the D_LINK_READY_IND exception packet —
// it is tier-routed to indication despite carrying REQ-class bits, per
// spec.md §3/§4.4.
func (s *Session) DLinkReadyIndReceive(ctx context.Context, timeout ...time.Duration) error {
	_, err := s.recvIndication(ctx, DLinkReadyInd, resolveTimeout(s.cfg, timeout))
	return err
}
