// Package kerrors defines the closed error-code enumeration returned by
// every fallible kernel operation across PadOS's scheduler, synchronization,
// message port and VFS layers.
package kerrors

import "fmt"

// Code is a closed enumeration of kernel error kinds. Zero value is Success.
type Code int

const (
	Success Code = iota
	InvalidArgument
	NotFound
	NotImplemented
	OutOfMemory
	PermissionDenied
	TimedOut
	Interrupted
	DeadlockWouldOccur
	NotOwner
	Overflow
	BusBusy
	IoError
	RestartSyscall
	CrossDevice
	ReadOnly
	InvalidPartitionTable
	BadState
)

var names = map[Code]string{
	Success:               "Success",
	InvalidArgument:       "InvalidArgument",
	NotFound:              "NotFound",
	NotImplemented:        "NotImplemented",
	OutOfMemory:           "OutOfMemory",
	PermissionDenied:      "PermissionDenied",
	TimedOut:              "TimedOut",
	Interrupted:           "Interrupted",
	DeadlockWouldOccur:    "DeadlockWouldOccur",
	NotOwner:              "NotOwner",
	Overflow:              "Overflow",
	BusBusy:               "BusBusy",
	IoError:               "IoError",
	RestartSyscall:        "RestartSyscall",
	CrossDevice:           "CrossDevice",
	ReadOnly:              "ReadOnly",
	InvalidPartitionTable: "InvalidPartitionTable",
	BadState:              "BadState",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error wraps a Code with an optional causing error and context, satisfying
// the standard error interface while still allowing callers to switch on
// the closed Code via Is.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
		}
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error for the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error for the given code around a causing error.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// Is reports whether err is a *Error carrying the given code. A nil err
// matches only Success.
func Is(err error, code Code) bool {
	if err == nil {
		return code == Success
	}
	var ke *Error
	if e, ok := err.(*Error); ok {
		ke = e
	} else {
		return false
	}
	return ke.Code == code
}

// CodeOf extracts the Code carried by err, or Success if err is nil, or
// InvalidArgument if err is a foreign (non-kerrors) error.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return InvalidArgument
}
