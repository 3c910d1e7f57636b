package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		resp.Body.Close()
	})
	return conn
}

func TestStream_PlaysGame(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.StreamHandler())
	defer srv.Close()

	conn := dialStream(t, srv, "players=3&seed=21&provider=random&interval=0s")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var msgs []streamMessage
	for {
		var m streamMessage
		require.NoError(t, conn.ReadJSON(&m))
		msgs = append(msgs, m)
		if m.Type == "end" {
			break
		}
	}

	require.Len(t, msgs, 3)
	assert.Equal(t, "start", msgs[0].Type)
	assert.EqualValues(t, 21, msgs[0].Seed)
	require.NotNil(t, msgs[0].Initial)
	assert.Len(t, msgs[0].Initial.Colony.Agents, 3)

	assert.Equal(t, "day", msgs[1].Type)
	require.NotNil(t, msgs[1].Day)
	assert.Equal(t, 1, msgs[1].Day.Day)
	assert.Len(t, msgs[1].Day.Escaped, 3)

	assert.True(t, msgs[2].Won)
	assert.Equal(t, 1, msgs[2].Days)
	assert.Empty(t, msgs[2].Error)
}

func TestStream_RejectsBadQuery(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.StreamHandler())
	defer srv.Close()

	for _, q := range []string{"players=lots", "players=0", "interval=soon", "provider=oracle"} {
		resp, err := http.Get(srv.URL + "/api/v1/stream?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestStream_ConnectionLimit(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.StreamHandler())
	defer srv.Close()

	s.streams.Store(maxStreamConns)
	resp, err := http.Get(srv.URL + "/api/v1/stream?provider=random")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
