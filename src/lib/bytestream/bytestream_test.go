package bytestream_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"trackmux/src/lib/bytestream"

	. "github.com/onsi/gomega"

	. "github.com/onsi/ginkgo"
)

var _ = Describe("Pipe", func() {
	var (
		sender *bytestream.Sender
		stream *bytestream.Stream
	)

	BeforeEach(func() {
		sender, stream = bytestream.Pipe()
	})

	Describe("Sending and receiving", func() {
		It("delivers chunks in order and then EOF", func() {
			go func() {
				sender.Send([]byte("one"))
				sender.Send([]byte("two"))
				sender.Send([]byte("three"))
				sender.Close()
			}()

			buffer := bytes.Buffer{}
			written, err := stream.SaveTo(&buffer)
			Expect(err).NotTo(HaveOccurred())
			Expect(written).To(Equal(int64(len("onetwothree"))))
			Expect(buffer.String()).To(Equal("onetwothree"))

			_, err = stream.Next()
			Expect(err).To(Equal(io.EOF))
		})

		It("keeps returning EOF after the stream ends", func() {
			sender.Close()

			for i := 0; i < 3; i++ {
				_, err := stream.Next()
				Expect(err).To(Equal(io.EOF))
			}
		})
	})

	Describe("Backpressure", func() {
		It("blocks the producer while the buffer is full", func() {
			var sentCount int64

			go func() {
				for i := 0; i < 50; i++ {
					if !sender.Send([]byte{0x00}) {
						return
					}
					atomic.AddInt64(&sentCount, 1)
				}
				sender.Close()
			}()

			// the consumer hasn't read anything, so the producer can fill
			// the buffer but not run ahead of it
			Eventually(func() int64 { return atomic.LoadInt64(&sentCount) }).Should(Equal(int64(16)))
			Consistently(func() int64 { return atomic.LoadInt64(&sentCount) }).Should(Equal(int64(16)))

			drained := 0
			for {
				data, err := stream.Next()
				if err == io.EOF {
					break
				}
				Expect(err).NotTo(HaveOccurred())
				drained += len(data)
			}
			Expect(drained).To(Equal(50))
		})
	})

	Describe("Dropped consumer", func() {
		It("stops the producer without an error", func() {
			stopped := make(chan bool, 1)

			go func() {
				for {
					if !sender.Send([]byte("data")) {
						stopped <- true
						return
					}
				}
			}()

			stream.Close()
			Eventually(stopped).Should(Receive(BeTrue()))
		})
	})

	Describe("Terminal errors", func() {
		terminalErr := errors.New("the pipes are broken")

		It("yields the failure exactly once, then EOF", func() {
			go func() {
				sender.Send([]byte("partial"))
				sender.Fail(terminalErr)
			}()

			data, err := stream.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("partial")))

			_, err = stream.Next()
			Expect(err).To(MatchError(terminalErr))

			_, err = stream.Next()
			Expect(err).To(Equal(io.EOF))
		})

		It("surfaces the failure through SaveTo", func() {
			go func() {
				sender.Send([]byte("partial"))
				sender.Fail(terminalErr)
			}()

			buffer := bytes.Buffer{}
			written, err := stream.SaveTo(&buffer)
			Expect(err).To(MatchError(terminalErr))
			Expect(written).To(Equal(int64(len("partial"))))
		})
	})
})

var _ = Describe("FromReader", func() {
	It("streams the reader contents and closes it", func() {
		contents := bytes.Repeat([]byte{0xAB}, bytestream.ChunkSize*2+100)
		reader := &closableReader{Reader: bytes.NewReader(contents)}

		stream := bytestream.FromReader(reader)

		buffer := bytes.Buffer{}
		_, err := stream.SaveTo(&buffer)
		Expect(err).NotTo(HaveOccurred())
		Expect(buffer.Bytes()).To(Equal(contents))

		Eventually(func() bool { return reader.closed.Load() }).Should(BeTrue())
	})

	It("ends the stream for a reader mid-drain when the handle is closed", func() {
		reader := &endlessReader{}
		stream := bytestream.FromReader(reader)

		_, err := stream.Next()
		Expect(err).NotTo(HaveOccurred())

		stream.Close()

		Eventually(func() bool {
			_, err := stream.Next()
			return err == io.EOF
		}).Should(BeTrue())
		Eventually(reader.closed.Load).Should(BeTrue())
	})

	It("chunks large payloads at the chunk size", func() {
		contents := bytes.Repeat([]byte{0xCD}, bytestream.ChunkSize+1)
		stream := bytestream.FromReader(io.NopCloser(bytes.NewReader(contents)))

		first, err := stream.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(HaveLen(bytestream.ChunkSize))

		second, err := stream.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(HaveLen(1))

		_, err = stream.Next()
		Expect(err).To(Equal(io.EOF))
	})
})

var _ = Describe("FromFile", func() {
	var (
		dir      string
		filePath string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "bytestream_test")
		Expect(err).NotTo(HaveOccurred())

		filePath = filepath.Join(dir, "payload.bin")
		err = os.WriteFile(filePath, []byte("file contents"), os.ModePerm)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.RemoveAll(dir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("streams the file and runs cleanup after completion", func() {
		cleanedUp := make(chan bool, 1)
		stream, err := bytestream.FromFile(filePath, func() {
			cleanedUp <- true
		})
		Expect(err).NotTo(HaveOccurred())

		buffer := bytes.Buffer{}
		_, err = stream.SaveTo(&buffer)
		Expect(err).NotTo(HaveOccurred())
		Expect(buffer.String()).To(Equal("file contents"))

		Eventually(cleanedUp).Should(Receive(BeTrue()))
	})

	It("runs cleanup when the consumer drops the stream", func() {
		cleanedUp := make(chan bool, 1)
		stream, err := bytestream.FromFile(filePath, func() {
			cleanedUp <- true
		})
		Expect(err).NotTo(HaveOccurred())

		stream.Close()
		Eventually(cleanedUp).Should(Receive(BeTrue()))
	})

	It("runs cleanup when the file cannot be opened", func() {
		cleanedUp := false
		_, err := bytestream.FromFile(filepath.Join(dir, "not-here.bin"), func() {
			cleanedUp = true
		})
		Expect(err).To(HaveOccurred())
		Expect(cleanedUp).To(BeTrue())
	})
})

// endlessReader serves data forever, so its producer can only stop through
// consumer-side cancellation.
type endlessReader struct {
	closed atomic.Bool
}

func (e *endlessReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0x00
	}
	return len(p), nil
}

func (e *endlessReader) Close() error {
	e.closed.Store(true)
	return nil
}

type closableReader struct {
	*bytes.Reader
	closed atomic.Bool
}

func (c *closableReader) Close() error {
	c.closed.Store(true)
	return nil
}
