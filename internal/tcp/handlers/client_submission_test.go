package handlers

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/distbuild.net/internal/adapter/logging"
	"gitlab.com/distbuild.net/internal/adapter/staging"
	"gitlab.com/distbuild.net/internal/core/services/queue"
	"gitlab.com/distbuild.net/internal/core/services/results"
	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

type submissionFixture struct {
	queue   *queue.TaskQueue
	results *results.Table
	root    string
	handler *ClientSubmissionHandler
}

func newSubmissionFixture(t *testing.T, timeout time.Duration) *submissionFixture {
	t.Helper()
	logger := logging.NewNopLogger()
	f := &submissionFixture{
		queue:   queue.NewTaskQueue(),
		results: results.NewTable(),
		root:    t.TempDir(),
	}
	f.handler = NewClientSubmissionHandler(f.queue, f.results, staging.NewDirStager(f.root, logger), timeout, logger)
	return f
}

// compileNext plays the worker side: takes one task and records an outcome.
// It runs off the test goroutine, so it only asserts.
func (f *submissionFixture) compileNext(t *testing.T, success bool, log string, artifact []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	task, err := f.queue.Pop(ctx)
	if !assert.NoError(t, err) {
		return
	}
	if artifact != nil {
		assert.NoError(t, os.WriteFile(domain.ArtifactPath(string(task)), artifact, 0o644))
	}
	f.results.Record(domain.TaskOutcome{Path: string(task), Success: success, Log: log})
}

func (f *submissionFixture) submit(t *testing.T, filename string, contents []byte) (net.Conn, <-chan error) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() { clientSide.Close() })

	done := make(chan error, 1)
	go func() { done <- f.handler.HandleSession(context.Background(), serverSide) }()

	payload := defs.SubmitFileData{Filename: filename, Contents: contents}.Encode()
	require.NoError(t, wire.WriteMessage(clientSide, defs.OpSubmitFile, payload))
	return clientSide, done
}

func readFileResult(t *testing.T, conn net.Conn) defs.FileResultData {
	t.Helper()
	msg, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, defs.OpFileResult, msg.Op)
	data, err := defs.DecodeFileResult(msg.Payload)
	require.NoError(t, err)
	return data
}

func TestClientSubmissionReturnsArtifact(t *testing.T) {
	f := newSubmissionFixture(t, 2*time.Second)
	conn, done := f.submit(t, "x.c", []byte("int x;"))

	go f.compileNext(t, true, defs.SuccessDiagnostic, []byte{0xDE, 0xAD})

	data := readFileResult(t, conn)
	require.True(t, data.Success)
	require.Equal(t, "x.o", data.Filename)
	require.Equal(t, []byte{0xDE, 0xAD}, data.Data)
	require.NoError(t, waitSession(t, done))

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	require.Empty(t, entries, "staging dir should be cleaned after reply")
}

func TestClientSubmissionReturnsCompilerLog(t *testing.T) {
	f := newSubmissionFixture(t, 2*time.Second)
	conn, done := f.submit(t, "broken.c", []byte("int main( {"))

	go f.compileNext(t, false, "broken.c:1: syntax error", nil)

	data := readFileResult(t, conn)
	require.False(t, data.Success)
	require.Equal(t, "broken.c", data.Filename)
	require.Equal(t, "broken.c:1: syntax error", string(data.Data))
	require.NoError(t, waitSession(t, done))
}

func TestClientSubmissionMissingArtifact(t *testing.T) {
	f := newSubmissionFixture(t, 2*time.Second)
	conn, done := f.submit(t, "y.c", []byte("int y;"))

	go f.compileNext(t, true, defs.SuccessDiagnostic, nil)

	data := readFileResult(t, conn)
	require.False(t, data.Success)
	require.Contains(t, string(data.Data), "Failed to read .o file")
	require.NoError(t, waitSession(t, done))
}

func TestClientSubmissionTimesOut(t *testing.T) {
	f := newSubmissionFixture(t, 50*time.Millisecond)
	conn, done := f.submit(t, "slow.c", []byte("int s;"))

	data := readFileResult(t, conn)
	require.False(t, data.Success)
	require.Equal(t, "slow.c", data.Filename)

	require.ErrorIs(t, waitSession(t, done), ErrResultTimeout)
	// nobody picked it up, so it stays queued
	require.Equal(t, 1, f.queue.Len())
}

func TestClientSubmissionRejectsWrongOpcode(t *testing.T) {
	f := newSubmissionFixture(t, time.Second)
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	done := make(chan error, 1)
	go func() { done <- f.handler.HandleSession(context.Background(), serverSide) }()

	require.NoError(t, wire.WriteMessage(clientSide, defs.OpHello, []byte("Worker-0")))
	require.ErrorIs(t, waitSession(t, done), ErrUnexpectedOpcode)
	require.Zero(t, f.queue.Len())
}

func TestClientSubmissionRejectsShortPayload(t *testing.T) {
	f := newSubmissionFixture(t, time.Second)
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	done := make(chan error, 1)
	go func() { done <- f.handler.HandleSession(context.Background(), serverSide) }()

	require.NoError(t, wire.WriteMessage(clientSide, defs.OpSubmitFile, []byte{0x00, 0x00}))
	require.ErrorIs(t, waitSession(t, done), defs.ErrShortPayload)
	require.Zero(t, f.queue.Len())
}
