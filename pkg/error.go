package pkg

import "errors"

// Caller precondition errors. These indicate broken wiring between the
// engine and the code that provisions descriptors and registers.
var (
	// ErrUnknownController indicates no register block exists for a controller id.
	ErrUnknownController = errors.New("unknown controller")

	// ErrUnknownDevice indicates no control pipe is bound to a device address.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrInvalidAddress indicates a descriptor or buffer address that does
	// not resolve to allocated memory.
	ErrInvalidAddress = errors.New("invalid descriptor address")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("descriptor too short")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAlreadyExists indicates an id or address is already registered.
	ErrAlreadyExists = errors.New("already exists")

	// ErrOutOfMemory indicates descriptor memory has no room left in the
	// 32-bit address space.
	ErrOutOfMemory = errors.New("descriptor memory exhausted")
)

// Transfer outcome errors reported for retired qTDs.
var (
	// ErrHalted indicates the endpoint queue halted on the descriptor.
	ErrHalted = errors.New("endpoint halted")

	// ErrTransaction indicates a transaction, babble or buffer error.
	ErrTransaction = errors.New("transaction error")

	// ErrPending indicates the descriptor has not been retired yet.
	ErrPending = errors.New("transfer pending")
)

// TransferStatus classifies the state of a transfer descriptor.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusActive  TransferStatus = iota // Awaiting execution
	TransferStatusSuccess                       // Retired without error
	TransferStatusHalted                        // Retired with the halt bit set
	TransferStatusError                         // Retired with error bits set
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusActive:
		return "active"
	case TransferStatusSuccess:
		return "success"
	case TransferStatusHalted:
		return "halted"
	case TransferStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusActive:
		return ErrPending
	case TransferStatusHalted:
		return ErrHalted
	default:
		return ErrTransaction
	}
}
