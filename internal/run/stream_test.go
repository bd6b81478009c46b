package run

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Class
	}{
		{"plain output", ClassPlain},
		{"Error: compile failed", ClassError},
		{"an ERROR happened", ClassError},
		{"Warning: deprecated", ClassWarning},
		{"WARNING", ClassWarning},
		{"Success!", ClassSuccess},
		{"✓ tests passed", ClassSuccess},
		{"<promise>COMPLETE</promise>", ClassComplete},
		{"error before <promise>COMPLETE</promise>", ClassError},
		{"<promise>complete</promise>", ClassPlain},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.text), tc.text)
	}
}

func TestMultiplex_ForwardsBothStreamsInOrder(t *testing.T) {
	sink := &collectSink{}
	res := Multiplex(context.Background(),
		strings.NewReader("one\ntwo\nthree\n"),
		strings.NewReader("err one\nerr two\n"),
		sink)

	assert.False(t, res.MarkerSeen)
	assert.False(t, res.Cancelled)
	assert.Equal(t, []string{"one", "two", "three"}, sink.texts(StreamStdout))
	assert.Equal(t, []string{"err one", "err two"}, sink.texts(StreamStderr))
}

func TestMultiplex_DetectsMarkerOnStdoutOnly(t *testing.T) {
	res := Multiplex(context.Background(),
		strings.NewReader("working\nall done <promise>COMPLETE</promise>\nafter\n"),
		strings.NewReader(""),
		&collectSink{})
	assert.True(t, res.MarkerSeen)

	res = Multiplex(context.Background(),
		strings.NewReader("working\n"),
		strings.NewReader("<promise>COMPLETE</promise>\n"),
		&collectSink{})
	assert.False(t, res.MarkerSeen)
}

func TestMultiplex_StopsOnCancel(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	t.Cleanup(func() {
		_ = stdoutW.Close()
		_ = stderrW.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	sink := &collectSink{}
	sink.onLine = func(l Line) {
		if l.Text == "started" {
			cancel()
		}
	}

	done := make(chan StreamResult, 1)
	go func() { done <- Multiplex(ctx, stdoutR, stderrR, sink) }()

	_, err := io.WriteString(stdoutW, "started\n")
	require.NoError(t, err)

	select {
	case res := <-done:
		assert.True(t, res.Cancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("multiplexer did not return after cancellation")
	}
}

func TestMultiplex_PreCancelledReadsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &collectSink{}
	res := Multiplex(ctx, strings.NewReader("line\n"), strings.NewReader(""), sink)
	assert.True(t, res.Cancelled)
	assert.Empty(t, sink.texts(StreamStdout))
}

func TestMultiplex_OverlongLineKeepsScanning(t *testing.T) {
	long := strings.Repeat("x", 2*maxLineSize+10) + "\n<promise>COMPLETE</promise>\nafter\n"
	sink := &collectSink{}

	done := make(chan StreamResult, 1)
	go func() {
		done <- Multiplex(context.Background(), strings.NewReader(long), strings.NewReader("still here\n"), sink)
	}()

	select {
	case res := <-done:
		assert.True(t, res.MarkerSeen)
		stdout := sink.texts(StreamStdout)
		require.Len(t, stdout, 5)
		assert.Len(t, stdout[0], maxLineSize)
		assert.Len(t, stdout[1], maxLineSize)
		assert.Equal(t, strings.Repeat("x", 10), stdout[2])
		assert.Equal(t, []string{"<promise>COMPLETE</promise>", "after"}, stdout[3:])
		assert.Equal(t, []string{"still here"}, sink.texts(StreamStderr))
	case <-time.After(5 * time.Second):
		t.Fatal("multiplexer blocked on overlong line")
	}
}

func TestMultiplex_MarkerAcrossChunkBoundary(t *testing.T) {
	input := strings.Repeat("x", maxLineSize-5) + CompletionMarker + "\n"
	sink := &collectSink{}

	res := Multiplex(context.Background(), strings.NewReader(input), strings.NewReader(""), sink)
	assert.True(t, res.MarkerSeen)
	assert.Len(t, sink.texts(StreamStdout), 2)
}

func TestMultiplex_MarkerInsideOverlongLine(t *testing.T) {
	input := strings.Repeat("x", 3*maxLineSize/2) + CompletionMarker + strings.Repeat("y", maxLineSize) + "\n"
	res := Multiplex(context.Background(), strings.NewReader(input), strings.NewReader(""), &collectSink{})
	assert.True(t, res.MarkerSeen)
}
