package anchorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegisterSendsExecuteMessage(t *testing.T) {
	hash := bytes.Repeat([]byte{0xab}, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/execute" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var body map[string]struct {
			Hash []byte `json:"hash"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if !bytes.Equal(body["register_claim_score"].Hash, hash) {
			t.Errorf("unexpected body: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(Response{Attributes: []Attribute{{Key: "block_height", Value: "7"}}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	client.SetAccessToken("tok")
	resp, err := client.Register(context.Background(), "claim_score", hash)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if h, _ := resp.Attr("block_height"); h != "7" {
		t.Fatalf("unexpected attributes: %+v", resp.Attributes)
	}
}

func TestVerifyUsesHexPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/api/v1/anchors/root/0102" + strings.Repeat("00", 30)
		if r.URL.Path != want {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(VerifyResponse{Exists: true, HashHex: "x"})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	hash := make([]byte, 32)
	hash[0], hash[1] = 1, 2
	resp, err := client.Verify(context.Background(), "root", hash)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !resp.Exists {
		t.Fatalf("expected exists")
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(struct {
			Error APIError `json:"error"`
		}{Error: APIError{Code: "ALREADY_ANCHORED", Message: "hash already anchored"}})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Register(context.Background(), "root", make([]byte, 32))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict || ErrorCode(err) != "ALREADY_ANCHORED" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("localhost", nil); err == nil {
		t.Fatalf("expected error for URL without scheme")
	}
}
