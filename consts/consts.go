// Package consts holds build information and the sentinel errors shared by
// the capture pipeline.
package consts

import "errors"

var (
	Version   = "v0.1.0"
	BuildTime = "unknown"
	GitTag    = "unknown"
)

var (
	// ErrInterfaceUnavailable means the selected interface is missing or cannot be opened.
	ErrInterfaceUnavailable = errors.New("interface unavailable")
	// ErrPrivilegeDenied means the process lacks the privilege to capture.
	ErrPrivilegeDenied = errors.New("capture privilege denied")
	// ErrMalformedPacket means a frame carried no network-layer addressing.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrSessionTerminated means the capture source ended unexpectedly.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrEndOfStream is returned by a closed session.
	ErrEndOfStream = errors.New("end of stream")

	ErrAlreadyRunning  = errors.New("capture worker already running")
	ErrShutdownTimeout = errors.New("capture worker shutdown timed out")
	ErrProtocol        = errors.New("protocol error")
	// ErrEnumerationFailed is logged when no strategy lists an interface.
	ErrEnumerationFailed = errors.New("interface enumeration failed")
)
