package hpgp

import "errors"

// Sentinel errors returned by this package. Callers should compare with
// errors.Is; wrapped errors carry additional context via fmt.Errorf("%w: ...").
var (
	ErrNullPointer    = errors.New("hpgp: null pointer")
	ErrBadParameter   = errors.New("hpgp: bad parameter")
	ErrNotFound       = errors.New("hpgp: not found")
	ErrNoMemory       = errors.New("hpgp: arena exhausted")
	ErrTimeout        = errors.New("hpgp: timeout")
	ErrResourceInUse  = errors.New("hpgp: resource in use")
	ErrBadState       = errors.New("hpgp: bad state")
	ErrAccessDenied   = errors.New("hpgp: access denied")
	ErrHWAbort        = errors.New("hpgp: hardware abort")
	ErrGeneralError   = errors.New("hpgp: general error")
	ErrNotYet         = errors.New("hpgp: not yet available")
)

// peerStatusTable maps a peer-reported status byte (management header's
// status_code) to a local error, mirroring HLB_host.c's status handling and
// the legacy loader's remap table in HLB_legacy_commands.c.
var peerStatusTable = map[uint8]error{
	statusOK:                    nil,
	statusRetransmissionFlag:    nil, // success-with-notice: duplicate delivery, not an error
	statusNoMemory:              ErrNoMemory,
	statusMapVSMBufIsLocked:     ErrResourceInUse,
	statusInternalError:         ErrBadState,
	statusBadParameter:          ErrBadParameter,
	statusNotFound:              ErrNotFound,
	statusAccessDenied:          ErrAccessDenied,
	statusHWAbort:               ErrHWAbort,
	statusGeneralError:          ErrGeneralError,
}

// statusToError resolves a wire status_code byte into a package error.
// Unknown codes are treated conservatively as ErrGeneralError, matching the
// original's "default -> GENERAL_ERROR" behavior in the status mapping.
func statusToError(code uint8) error {
	if err, ok := peerStatusTable[code]; ok {
		return err
	}
	return ErrGeneralError
}
