package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	srv := New(":0", http.NotFoundHandler())
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)

	srv = New(":0", http.NotFoundHandler(), WithWriteTimeout(45*time.Second))
	assert.Equal(t, 45*time.Second, srv.WriteTimeout)

	srv = New(":0", http.NotFoundHandler(), WithWriteTimeout(0))
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
}
