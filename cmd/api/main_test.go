package main

import (
	"net/http"
	"testing"
	"time"

	"macro-snap/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
)

func TestNewServer(t *testing.T) {
	handler := http.NewServeMux()
	srv := newServer(&config.ServerConfig{
		Port:              9090,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}, handler)

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 30*time.Second, srv.ReadTimeout)
	assert.Equal(t, 90*time.Second, srv.WriteTimeout)
	assert.Equal(t, 2*time.Minute, srv.IdleTimeout)
	assert.Equal(t, handler, srv.Handler)
}

func TestNewServerHeaderTimeoutBoundedByReadTimeout(t *testing.T) {
	srv := newServer(&config.ServerConfig{ReadTimeout: 3 * time.Second, ReadHeaderTimeout: 10 * time.Second}, nil)
	assert.Equal(t, 3*time.Second, srv.ReadHeaderTimeout)

	srv = newServer(&config.ServerConfig{ReadTimeout: 3 * time.Second}, nil)
	assert.Equal(t, 3*time.Second, srv.ReadHeaderTimeout)
}
