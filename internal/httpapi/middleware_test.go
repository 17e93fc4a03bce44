package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cryptomonitor/tracker/internal/config"
)

func TestAllowedHosts(t *testing.T) {
	r := newRouter(t, func(cfg *config.Config) {
		cfg.AllowedHosts = []string{"tracker.example.com", ".apps.example.org"}
	})

	tt := []struct {
		name string
		host string
		code int
	}{
		{"exact match", "tracker.example.com", http.StatusOK},
		{"exact match with port", "tracker.example.com:8000", http.StatusOK},
		{"subdomain wildcard", "web.apps.example.org", http.StatusOK},
		{"wildcard root", "apps.example.org", http.StatusOK},
		{"unknown host", "evil.example.net", http.StatusBadRequest},
		{"near miss", "nottracker.example.com", http.StatusBadRequest},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Host = tc.host

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestAllowedHostsEmptyListAllowsAll(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Host = "anything.example.net"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
