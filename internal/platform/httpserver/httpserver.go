package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. The write timeout is generous because
// manifest responses grow with the gateway population; idle keep-alives are
// kept long so cert-polling clients reuse connections.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
