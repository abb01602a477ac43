package beacon

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, payload any) *http.Response {
	body, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestClient_RawRand(t *testing.T) {
	t.Parallel()
	want := bytes.Repeat([]byte{0x5a}, 32)
	client := New("https://beacon.example/", 0)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodGet || r.URL.Path != "/raw_rand" {
				t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			return jsonResponse(http.StatusOK, map[string]string{
				"randomness": base64.StdEncoding.EncodeToString(want),
			}), nil
		}),
	}
	got, err := client.RawRand(context.Background())
	if err != nil {
		t.Fatalf("raw rand: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected randomness %x", got)
	}
}

func TestClient_RawRandErrors(t *testing.T) {
	t.Parallel()
	cases := map[string]roundTripFunc{
		"status": func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusServiceUnavailable, map[string]string{}), nil
		},
		"short": func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]string{"randomness": base64.StdEncoding.EncodeToString([]byte{1, 2})}), nil
		},
		"garbage": func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader([]byte("{"))), Header: make(http.Header)}, nil
		},
		"transport": func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	for name, rt := range cases {
		client := New("https://beacon.example", 0)
		client.httpClient = &http.Client{Transport: rt}
		if _, err := client.RawRand(context.Background()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := New("", 0).RawRand(context.Background()); err == nil {
		t.Fatal("expected error for missing addr")
	}
}

func TestLocal_RawRand(t *testing.T) {
	t.Parallel()
	l := NewLocal()
	a, err := l.RawRand(context.Background())
	if err != nil {
		t.Fatalf("raw rand: %v", err)
	}
	b, _ := l.RawRand(context.Background())
	if len(a) != 32 || bytes.Equal(a, b) {
		t.Fatal("expected two distinct 32-byte draws")
	}
	short := &Local{reader: bytes.NewReader([]byte{1})}
	if _, err := short.RawRand(context.Background()); err == nil {
		t.Fatal("expected error for exhausted reader")
	}
}
