package run

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// CompletionMarker is the literal an agent prints on stdout once every story passes.
const CompletionMarker = "<promise>COMPLETE</promise>"

const maxLineSize = 1024 * 1024

// Stream identifies which pipe a line came from.
type Stream int

const (
	StreamStdout Stream = iota
	StreamStderr
)

func (s Stream) String() string {
	if s == StreamStderr {
		return "stderr"
	}
	return "stdout"
}

// Class is the presentational category of a line.
type Class int

const (
	ClassPlain Class = iota
	ClassError
	ClassWarning
	ClassSuccess
	ClassComplete
)

func (c Class) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassWarning:
		return "warning"
	case ClassSuccess:
		return "success"
	case ClassComplete:
		return "complete"
	default:
		return "plain"
	}
}

// Classify picks the first matching class in the order error, warning, success, complete.
func Classify(text string) Class {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "error"):
		return ClassError
	case strings.Contains(lower, "warning"):
		return ClassWarning
	case strings.Contains(lower, "success"), strings.Contains(text, "✓"):
		return ClassSuccess
	case strings.Contains(text, CompletionMarker):
		return ClassComplete
	default:
		return ClassPlain
	}
}

// Line is one line of agent output. Lines longer than 1 MiB arrive as
// several consecutive Lines.
type Line struct {
	Stream Stream
	Text   string
	Class  Class

	marker bool
}

// Sink receives agent output lines in arrival order.
type Sink interface {
	Line(Line)
}

// StreamResult reports what the multiplexer observed.
type StreamResult struct {
	MarkerSeen bool
	Cancelled  bool
}

// Multiplex drains stdout and stderr concurrently onto sink until both reach
// EOF or ctx is cancelled. A cancelled return leaves the producers draining
// their pipes; they finish once the pipes close.
func Multiplex(ctx context.Context, stdout, stderr io.Reader, sink Sink) StreamResult {
	lines := make(chan Line)
	var wg sync.WaitGroup
	wg.Add(2)
	go produce(ctx, &wg, stdout, StreamStdout, lines)
	go produce(ctx, &wg, stderr, StreamStderr, lines)
	go func() {
		wg.Wait()
		close(lines)
	}()

	var res StreamResult
	for {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res
		}
		select {
		case <-ctx.Done():
			res.Cancelled = true
			return res
		case line, ok := <-lines:
			if !ok {
				return res
			}
			if line.Stream == StreamStdout && line.marker {
				res.MarkerSeen = true
			}
			sink.Line(line)
		}
	}
}

// lineSplitter splits on newlines like bufio.ScanLines but emits lines longer
// than maxLineSize as consecutive chunks instead of failing.
type lineSplitter struct {
	// partial is set when the last token ended mid-line.
	partial bool
}

func (l *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if len(data) >= maxLineSize && bytes.IndexByte(data[:maxLineSize], '\n') < 0 {
		l.partial = true
		return maxLineSize, data[:maxLineSize], nil
	}
	l.partial = false
	return bufio.ScanLines(data, atEOF)
}

func produce(ctx context.Context, wg *sync.WaitGroup, r io.Reader, stream Stream, out chan<- Line) {
	defer wg.Done()
	splitter := &lineSplitter{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split(splitter.split)

	// carry holds the end of the previous chunk of an overlong line so a
	// marker cut by the chunk boundary is still found.
	var carry string
	for scanner.Scan() {
		text := scanner.Text()
		line := Line{Stream: stream, Text: text, Class: Classify(text)}
		line.marker = strings.Contains(carry+text, CompletionMarker)
		carry = ""
		if splitter.partial {
			carry = text[max(0, len(text)-len(CompletionMarker)+1):]
		}
		select {
		case out <- line:
		case <-ctx.Done():
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Str("stream", stream.String()).Msg("agent output unreadable, discarding rest of stream")
		_, _ = io.Copy(io.Discard, r)
	}
}
