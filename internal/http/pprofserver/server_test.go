package pprofserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewServer(Config{}))
	assert.Nil(t, NewServer(Config{Addr: "  "}))

	srv := NewServer(Config{Addr: "127.0.0.1:6060"})
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:6060", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}

func TestLocalOrBasicAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    Config
		remote string
		user   string
		pass   string
		want   int
	}{
		{"loopback without creds", Config{}, "127.0.0.1:12345", "", "", http.StatusTeapot},
		{"ipv6 loopback", Config{}, "[::1]:12345", "", "", http.StatusTeapot},
		{"remote, auth not configured", Config{}, "8.8.8.8:5000", "u", "p", http.StatusUnauthorized},
		{"remote, wrong password", Config{User: "u", Pass: "p"}, "8.8.8.8:5000", "u", "nope", http.StatusUnauthorized},
		{"remote, no header", Config{User: "u", Pass: "p"}, "8.8.8.8:5000", "", "", http.StatusUnauthorized},
		{"remote, correct creds", Config{User: "u", Pass: "p"}, "8.8.8.8:5000", "u", "p", http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			req.RemoteAddr = tt.remote
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rr := httptest.NewRecorder()
			localOrBasicAuth(next, tt.cfg).ServeHTTP(rr, req)

			require.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestHandler_ServesIndexToLoopback(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rr := httptest.NewRecorder()
	Handler(Config{}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "goroutine")
}

func TestIsLoopback(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"127.0.0.1:123": true,
		"127.0.0.1":     true,
		" 127.0.0.1 ":   true,
		"[::1]:123":     true,
		"8.8.8.8:1":     false,
		"not-an-ip:1":   false,
		"":              false,
	}
	for in, want := range cases {
		assert.Equal(t, want, isLoopback(in), in)
	}
}
