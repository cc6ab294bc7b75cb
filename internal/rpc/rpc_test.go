package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pouwchain/pouwchain/internal/chain"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/genesis"
	"github.com/pouwchain/pouwchain/internal/mempool"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	c := chain.New()
	g, _, err := genesis.Build(0, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Append(g)

	reg, err := circuits.Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	return &Server{Chain: c, CoinPool: mempool.NewCoinPool(), ProofPool: mempool.NewProofPool(), Circuits: reg}
}

func post(t *testing.T, h http.Handler, body string) response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestGetLatestBlockID(t *testing.T) {
	s := newTestServer(t)
	resp := post(t, s.Handler(), `{"id":1,"method":"GET_LATEST_BLOCK_ID"}`)
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["latest_id"] != float64(0) {
		t.Fatalf("result = %+v, want latest_id 0", resp.Result)
	}
}

func TestGetBlockUnknownID(t *testing.T) {
	s := newTestServer(t)
	resp := post(t, s.Handler(), `{"id":1,"method":"GET_BLOCK","params":{"block_id":99}}`)
	if resp.Error == "" {
		t.Fatal("expected an error for an unknown block_id")
	}
}

func TestGetBlockKnownID(t *testing.T) {
	s := newTestServer(t)
	resp := post(t, s.Handler(), `{"id":1,"method":"GET_BLOCK","params":{"block_id":0}}`)
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Result == nil {
		t.Fatal("expected a block result")
	}
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	resp := post(t, s.Handler(), `{"id":1,"method":"NOT_A_METHOD"}`)
	if resp.Error != string(errUnknownMethod) {
		t.Fatalf("Error = %q, want %q", resp.Error, errUnknownMethod)
	}
}

func TestMalformedRequestBody(t *testing.T) {
	s := newTestServer(t)
	resp := post(t, s.Handler(), `not json`)
	if resp.Error == "" {
		t.Fatal("expected an error for a malformed request body")
	}
}

func TestGetCircuits(t *testing.T) {
	s := newTestServer(t)
	resp := post(t, s.Handler(), `{"id":1,"method":"GET_CIRCUITS"}`)
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result = %+v, want a map", resp.Result)
	}
	circuits, ok := result["circuits"].([]interface{})
	if !ok || len(circuits) != 0 {
		t.Fatalf("circuits = %+v, want an empty list", result["circuits"])
	}
}

func TestListenAddr(t *testing.T) {
	if _, err := ListenAddr("127.0.0.1:8080"); err != nil {
		t.Fatalf("ListenAddr() on a valid addr error = %v", err)
	}
	if _, err := ListenAddr("not-an-addr"); err == nil {
		t.Fatal("ListenAddr() on a malformed addr succeeded, want error")
	}
	if _, err := ListenAddr("127.0.0.1:notaport"); err == nil {
		t.Fatal("ListenAddr() with a non-numeric port succeeded, want error")
	}
}
