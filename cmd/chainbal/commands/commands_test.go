package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chainbal/internal/domain"
	"chainbal/internal/fault"
	"chainbal/internal/infrastructure/telemetry"
	"chainbal/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
}

func nodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	answer := func(req rpcRequest) map[string]any {
		var result any
		switch req.Method {
		case "chain_getHeader":
			result = domain.Header{ParentHash: "0xabc", Number: "0x2a", Digest: domain.Digest{Logs: []string{"0x05424142450c010203"}}}
		case "chain_getFinalizedHead":
			result = "0xfin"
		case "state_getStorage":
			result = nil
		}
		return map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
			var reqs []rpcRequest
			if err := json.Unmarshal(body, &reqs); err != nil {
				t.Errorf("decode batch: %v", err)
			}
			responses := make([]map[string]any, 0, len(reqs))
			for _, req := range reqs {
				responses = append(responses, answer(req))
			}
			_ = json.NewEncoder(w).Encode(responses)
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode call: %v", err)
		}
		_ = json.NewEncoder(w).Encode(answer(req))
	}))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeysCommand(t *testing.T) {
	out, err := run(t, "keys", alice, "--asset-id", "1984")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9" +
		"de1e86a9a8c739864cf3cc5ec2bea59f" +
		"d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	if !strings.Contains(out, want) {
		t.Errorf("missing System.Account key in:\n%s", out)
	}
	if !strings.Contains(out, "prefix          42") {
		t.Errorf("missing prefix in:\n%s", out)
	}

	out, err = run(t, "--json", "keys", alice)
	if err != nil {
		t.Fatalf("keys json: %v", err)
	}
	var decoded keysOutput
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.PublicKey != "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d" {
		t.Errorf("public key %s", decoded.PublicKey)
	}

	if _, err := run(t, "keys", "5Grw"); err == nil {
		t.Errorf("expected address error")
	}
}

func TestKeysAssetIDFromEnvironment(t *testing.T) {
	t.Setenv("ASSET_ID", "7")
	out, err := run(t, "--json", "keys", alice)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	var decoded keysOutput
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AssetID != 7 {
		t.Errorf("asset id = %d, want 7", decoded.AssetID)
	}

	t.Setenv("ASSET_ID", "usdt")
	_, err = run(t, "keys", alice)
	if !fault.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRootInstallsTracePropagation(t *testing.T) {
	if _, err := run(t, "keys", alice); err != nil {
		t.Fatalf("keys: %v", err)
	}
	headers := []kafka.Header{{
		Key:   "traceparent",
		Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"),
	}}
	spanCtx := trace.SpanContextFromContext(telemetry.ContextFromKafka(context.Background(), headers))
	if !spanCtx.IsValid() || !spanCtx.IsRemote() {
		t.Fatalf("remote span context not restored: %+v", spanCtx)
	}
	if got := spanCtx.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %s", got)
	}
}

func TestEventsRequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	if _, err := run(t, "events"); err == nil || !strings.Contains(err.Error(), "KAFKA_BROKERS") {
		t.Fatalf("expected missing brokers error, got %v", err)
	}
}

func TestHeadCommand(t *testing.T) {
	node := nodeServer(t)
	defer node.Close()

	out, err := run(t, "head", "--rpc", node.URL)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if !strings.Contains(out, "best       #42") || !strings.Contains(out, "finalized  #42 0xfin") || !strings.Contains(out, "digest     seal BABE") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestBalanceCommand(t *testing.T) {
	node := nodeServer(t)
	defer node.Close()

	out, err := run(t, "balance", alice, "--rpc", node.URL)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !strings.Contains(out, "free       0.0000") || !strings.Contains(out, "price      unavailable") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = run(t, "balance", alice, "--rpc", node.URL, "--json")
	if err != nil {
		t.Fatalf("balance json: %v", err)
	}
	var snapshot domain.BalanceSnapshot
	if err := json.Unmarshal([]byte(out), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Native.Exists || snapshot.Native.Free.Amount.Sign() != 0 {
		t.Errorf("absent record must be zero: %+v", snapshot.Native)
	}
}

type sliceReader struct {
	messages []kafka.Message
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func TestFollowEvents(t *testing.T) {
	head, err := streaming.Encode(streaming.Message{
		Type: streaming.MessageTypeHead, Network: "KSM", BlockNumber: 7, FinalizedNumber: 5, FinalizedHash: "0x1",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	balance, err := streaming.Encode(streaming.Message{
		Type: streaming.MessageTypeBalance, Network: "KSM", Address: "alice", Free: "10", Reserved: "0", AssetBalance: "0",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	reader := &sliceReader{messages: []kafka.Message{
		{Value: head},
		{Value: []byte("garbage")},
		{Value: balance},
	}}

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	if err := followEvents(cmd, reader, false, 0); err != nil {
		t.Fatalf("follow: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "head best=#7 finalized=#5") || !strings.Contains(text, "balance alice free=10") {
		t.Errorf("unexpected output:\n%s", text)
	}
}
