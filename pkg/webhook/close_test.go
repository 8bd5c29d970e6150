package webhook

import (
	"net/http"
	"sync/atomic"
	"testing"
)

type testTransport struct{ called int32 }

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) { panic("not used") }
func (t *testTransport) CloseIdleConnections()                               { atomic.AddInt32(&t.called, 1) }

func TestClient_Close_IdempotentAndCallsTransport(t *testing.T) {
	tr := &testTransport{}
	client := &http.Client{Transport: tr}
	c, err := NewClient(Config{URL: "http://localhost:9000/hook"}, client)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close second call error: %v", err)
	}
	if got := atomic.LoadInt32(&tr.called); got != 1 {
		t.Fatalf("expected CloseIdleConnections called once, got %d", got)
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "ftp://example.com/hook"} {
		if _, err := NewClient(Config{URL: u}, nil); err == nil {
			t.Fatalf("expected error for %q", u)
		}
	}
}
