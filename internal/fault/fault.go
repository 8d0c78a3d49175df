// Package fault defines the error kinds surfaced by the chain query core.
//
// Every failure reaching a caller is one of these kinds, possibly wrapped with
// fmt.Errorf("...: %w", err). Callers tell them apart with errors.As or the Is
// helpers below, so "node unreachable", "node said no", "node sent garbage"
// and "bad address" stay distinguishable.
package fault

import (
	"errors"
	"fmt"
)

// TransportError is a network failure, a non-2xx HTTP status or a timeout.
type TransportError struct {
	Method     string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("transport: %s timed out", e.Method)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport: %s: http status %d", e.Method, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("transport: %s: %v", e.Method, e.Err)
	default:
		return fmt.Sprintf("transport: %s failed", e.Method)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// RPCError is a well-formed response envelope carrying a node-side error.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: error %d: %s", e.Method, e.Code, e.Message)
}

// DecodeError is a malformed or too-short payload.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v", e.What, e.Err)
	}
	return "decode " + e.What
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AddressError is a malformed address string.
type AddressError struct {
	Address string
	Reason  string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address %q: %s", e.Address, e.Reason)
}

// ConfigError is a missing or invalid setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Decodef builds a DecodeError with a formatted cause.
func Decodef(what, format string, args ...any) *DecodeError {
	return &DecodeError{What: what, Err: fmt.Errorf(format, args...)}
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsRPC(err error) bool {
	var target *RPCError
	return errors.As(err, &target)
}

func IsDecode(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

func IsAddress(err error) bool {
	var target *AddressError
	return errors.As(err, &target)
}

func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// Kind names the error class for logs and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAddress(err):
		return "address"
	case IsTransport(err):
		return "transport"
	case IsRPC(err):
		return "rpc"
	case IsDecode(err):
		return "decode"
	case IsConfig(err):
		return "config"
	default:
		return "internal"
	}
}
