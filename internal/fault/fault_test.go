package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{&TransportError{Method: "chain_getHeader", Timeout: true, Err: context.DeadlineExceeded}, "transport"},
		{&RPCError{Method: "state_getStorage", Code: -32602, Message: "invalid params"}, "rpc"},
		{Decodef("account record", "need %d bytes, got %d", 48, 3), "decode"},
		{&AddressError{Address: "0OIl", Reason: "invalid base58 character"}, "address"},
		{&ConfigError{Key: "RPC_URL", Reason: "is required"}, "config"},
		{errors.New("boom"), "internal"},
		{nil, ""},
	}
	for _, tt := range tests {
		wrapped := tt.err
		if wrapped != nil {
			wrapped = fmt.Errorf("query balances: %w", tt.err)
		}
		if got := Kind(wrapped); got != tt.kind {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.kind)
		}
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("head: %w", &TransportError{Method: "chain_getHeader", Timeout: true, Err: context.DeadlineExceeded})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
	if !IsTransport(err) || IsRPC(err) {
		t.Fatalf("unexpected classification for %v", err)
	}
}

func TestErrorMessages(t *testing.T) {
	if got := (&TransportError{Method: "m", StatusCode: 503}).Error(); got != "transport: m: http status 503" {
		t.Errorf("unexpected message %q", got)
	}
	if got := (&RPCError{Method: "m", Code: 1, Message: "x"}).Error(); got != "rpc m: error 1: x" {
		t.Errorf("unexpected message %q", got)
	}
	if got := (&DecodeError{What: "header"}).Error(); got != "decode header" {
		t.Errorf("unexpected message %q", got)
	}
}
