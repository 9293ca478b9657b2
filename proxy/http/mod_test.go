package http

import (
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHTTP_ListenAndStop(t *testing.T) {
	proxy := NewHTTP("127.0.0.1:0")

	proxy.RegisterHandler(http.MethodGet, "/hello/{name}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello %s", chi.URLParam(r, "name"))
	})

	done := make(chan struct{})
	go func() {
		proxy.Listen()
		close(done)
	}()

	waitAddr(t, proxy)

	url := fmt.Sprintf("http://%s/hello/alice", proxy.GetAddr())

	resp, err := http.Get(url)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello alice", string(body))
	require.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "abc", resp.Header.Get(RequestIDHeader))

	resp, err = http.Post(url, "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	proxy.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	require.Nil(t, proxy.GetAddr())
}

func TestHTTP_ListenFailure(t *testing.T) {
	proxy := NewHTTP("256.0.0.1:0")

	// Returns right away when the address is not valid.
	proxy.Listen()

	require.Nil(t, proxy.GetAddr())
}

func TestHTTP_Recover(t *testing.T) {
	proxy := NewHTTP("127.0.0.1:0")

	proxy.RegisterHandler(http.MethodGet, "/panic", func(http.ResponseWriter, *http.Request) {
		panic("oops")
	})

	go proxy.Listen()
	defer proxy.Stop()

	waitAddr(t, proxy)

	resp, err := http.Get(fmt.Sprintf("http://%s/panic", proxy.GetAddr()))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

// -----------------------------------------------------------------------------
// Utility functions

func waitAddr(t *testing.T, proxy *HTTP) {
	for i := 0; i < 50 && proxy.GetAddr() == nil; i++ {
		time.Sleep(20 * time.Millisecond)
	}

	require.NotNil(t, proxy.GetAddr())
}
