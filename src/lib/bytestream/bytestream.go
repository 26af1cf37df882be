// Package bytestream converts push style byte producers (HTTP response
// bodies, staged files) into pull style streams with a bounded buffer.
// The buffer is the only flow control: a producer blocks when the consumer
// falls behind, and a consumer that closes its stream stops the producer
// within one send attempt.
package bytestream

import (
	"io"
	"os"
	"sync"

	"trackmux/src/lib/cerr"
)

const (
	// ChunkSize is the read size used by the file and reader producers.
	ChunkSize = 65535

	bufferedChunks = 16
)

type chunk struct {
	data []byte
	err  error
}

// Stream is the consumer half of a pipe. Single consumer; once it has
// yielded a terminal error or io.EOF it will never produce data again.
type Stream struct {
	chunks <-chan chunk
	done   chan struct{}

	closeOnce sync.Once
	ended     bool
}

// Sender is the producer half of a pipe.
type Sender struct {
	chunks chan<- chunk
	done   <-chan struct{}

	closeOnce sync.Once
}

func Pipe() (*Sender, *Stream) {
	chunks := make(chan chunk, bufferedChunks)
	done := make(chan struct{})

	sender := &Sender{
		chunks: chunks,
		done:   done,
	}

	stream := &Stream{
		chunks: chunks,
		done:   done,
	}

	return sender, stream
}

// Send delivers one chunk, blocking while the buffer is full. It reports
// false when the consumer is gone, which is the signal for the producer to
// stop. A dropped consumer is not an error.
func (s *Sender) Send(data []byte) bool {
	select {
	case s.chunks <- chunk{data: data}:
		return true
	case <-s.done:
		return false
	}
}

// Fail delivers err as the terminal item and ends the stream. No chunks can
// follow a failure.
func (s *Sender) Fail(err error) {
	select {
	case s.chunks <- chunk{err: err}:
	case <-s.done:
	}

	s.Close()
}

// Close ends the stream cleanly.
func (s *Sender) Close() {
	s.closeOnce.Do(func() {
		close(s.chunks)
	})
}

// Next returns the next chunk of the stream. It returns io.EOF after the
// last chunk, or the producer's terminal error exactly once.
func (s *Stream) Next() ([]byte, error) {
	if s.ended {
		return nil, io.EOF
	}

	c, ok := <-s.chunks
	if !ok {
		s.ended = true
		return nil, io.EOF
	}

	if c.err != nil {
		s.ended = true
		return nil, c.err
	}

	return c.data, nil
}

// Close drops the consumer handle. The producer observes the closure on its
// next send attempt and terminates.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// SaveTo drains the whole stream into w and reports the number of bytes
// written.
func (s *Stream) SaveTo(w io.Writer) (int64, error) {
	var written int64

	for {
		data, err := s.Next()
		if err == io.EOF {
			return written, nil
		}

		if err != nil {
			return written, err
		}

		n, err := w.Write(data)
		written += int64(n)
		if err != nil {
			return written, cerr.Wrap(err).Error("Failed to write stream chunk")
		}
	}
}

// SaveToFile drains the whole stream into a newly created file at path.
func (s *Stream) SaveToFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return cerr.Field("path", path).Wrap(err).Error("Failed to create output file")
	}

	if _, err := s.SaveTo(out); err != nil {
		_ = out.Close()
		return cerr.Field("path", path).Wrap(err).Error("Failed to drain stream to file")
	}

	if err := out.Close(); err != nil {
		return cerr.Field("path", path).Wrap(err).Error("Failed to close output file")
	}

	return nil
}

// FromReader spawns a producer that reads r in ChunkSize chunks until EOF or
// a read failure, which is delivered as the stream's terminal error. r is
// closed when the producer stops.
func FromReader(r io.ReadCloser) *Stream {
	return produce(r, nil)
}

// FromFile streams the file at path. cleanup (optional) runs once streaming
// stops for any reason: completion, failure, or a dropped consumer.
func FromFile(path string, cleanup func()) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, cerr.Field("path", path).Wrap(err).Error("Failed to open file for streaming")
	}

	return produce(f, cleanup), nil
}

func produce(r io.ReadCloser, cleanup func()) *Stream {
	sender, stream := Pipe()

	go func() {
		// Close is idempotent; closing here as well guarantees the chunk
		// channel ends even when the producer stops on a dropped consumer,
		// so a reader still mid-drain observes EOF instead of blocking
		defer sender.Close()
		defer func() {
			_ = r.Close()
			if cleanup != nil {
				cleanup()
			}
		}()

		buf := make([]byte, ChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				data := append([]byte(nil), buf[:n]...)
				if !sender.Send(data) {
					return
				}
			}

			if err == io.EOF {
				sender.Close()
				return
			}

			if err != nil {
				sender.Fail(err)
				return
			}
		}
	}()

	return stream
}
