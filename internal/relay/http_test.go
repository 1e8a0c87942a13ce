package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenHTTPSource(t *testing.T) {
	data := randomData(t, 200_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "run-7", r.Header.Get(RequestIDHeader))
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	ctx := context.Background()
	src, err := OpenSource(ctx, srv.URL+"/stream", &OpenOptions{BufferSize: 4096, RequestID: "run-7"})
	require.NoError(t, err)
	defer src.Close()

	dst := NewMockSink()
	res := newTestEngine(t, &Options{Source: src, Sink: dst}).Run(ctx)

	assert.Equal(t, OutcomeEOF, res.Outcome)
	assert.Equal(t, data, dst.GetWrittenData())
}

func TestOpenHTTPSourceStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := OpenSource(context.Background(), srv.URL, nil)
	assert.ErrorContains(t, err, "failed to open input")
	assert.ErrorContains(t, err, "404 Not Found")
}

func TestOpenHTTPSink(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, uploadContentType, r.Header.Get("Content-Type"))
		got, _ := io.ReadAll(r.Body)
		received <- got
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := context.Background()
	dst, err := OpenSink(ctx, srv.URL, &OpenOptions{RequestID: "run-8"})
	require.NoError(t, err)
	defer dst.Close()

	data := randomData(t, 300_000)
	res := newTestEngine(t, &Options{Source: NewMockSource(data), Sink: dst}).Run(ctx)
	assert.Equal(t, ExitOK, res.ExitCode)

	select {
	case got := <-received:
		assert.Equal(t, data, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the upload")
	}
}

func TestHTTPSinkRejectedUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "storage full", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	ctx := context.Background()
	dst, err := OpenSink(ctx, srv.URL, nil)
	require.NoError(t, err)
	defer dst.Close()

	res := newTestEngine(t, &Options{Source: NewMockSource([]byte("small payload")), Sink: dst}).Run(ctx)

	assert.Equal(t, OutcomeWriteError, res.Outcome)
	assert.Equal(t, ExitIOError, res.ExitCode)
	assert.Equal(t, "sink-gone", res.Code)
	assert.ErrorContains(t, res.Err, "507")
}

func TestHTTPSinkServerStopsReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ctx := context.Background()
	dst, err := OpenSink(ctx, srv.URL, nil)
	require.NoError(t, err)
	defer dst.Close()

	data := randomData(t, 1<<20)
	res := newTestEngine(t, &Options{Source: NewMockSource(data), Sink: dst}).Run(ctx)

	assert.Equal(t, ExitIOError, res.ExitCode)
	assert.Equal(t, "sink-gone", res.Code)
}

func TestHTTPSinkClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
	}))
	defer srv.Close()

	dst, err := OpenSink(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	require.NoError(t, dst.Close())
	require.NoError(t, dst.Close())

	_, err = dst.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = dst.WaitWritable(0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHTTPSinkStalledServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	dst := OpenHTTPSink(context.Background(), newHTTPClient(&OpenOptions{}), srv.URL)

	ready, err := dst.WaitWritable(20 * time.Millisecond)
	require.NoError(t, err)
	require.True(t, ready)

	// Larger than the socket buffers, so the transport cannot take it all
	chunk := make([]byte, 32<<20)
	start := time.Now()
	n, err := dst.Write(chunk)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Equal(t, KindRetry, Classify(OpWrite, err))

	start = time.Now()
	ready, err = dst.WaitWritable(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Less(t, time.Since(start), 2*time.Second)

	closed := make(chan struct{})
	go func() {
		_ = dst.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a stalled upload")
	}
}

func TestHTTPSinkSlowServer(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		got, _ := io.ReadAll(r.Body)
		received <- got
	}))
	defer srv.Close()

	ctx := context.Background()
	dst := OpenHTTPSink(ctx, newHTTPClient(&OpenOptions{}), srv.URL)
	defer dst.Close()

	data := randomData(t, 8<<20)
	src := NewMockSource(data)
	src.SetChunkSize(1 << 20)
	res := newTestEngine(t, &Options{Source: src, Sink: dst, BufferSize: 1 << 20}).Run(ctx)

	assert.Equal(t, ExitOK, res.ExitCode)
	select {
	case got := <-received:
		assert.Equal(t, data, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the upload")
	}
}
