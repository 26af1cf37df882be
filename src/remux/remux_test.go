package remux_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"trackmux/src/application/integration_test/dummy"
	"trackmux/src/lib/bytestream"
	"trackmux/src/lib/format"
	"trackmux/src/music/entity"
	"trackmux/src/remux"

	"github.com/dhowden/tag"

	. "github.com/onsi/gomega"

	. "github.com/onsi/ginkgo"
)

func streamOf(data []byte) *bytestream.Stream {
	return bytestream.FromReader(io.NopCloser(bytes.NewReader(data)))
}

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

var _ = Describe("Engine", func() {
	var (
		engine remux.Engine
		meta   entity.Metadata
	)

	BeforeEach(func() {
		var err error
		engine, err = remux.NewEngine(workingDir)
		Expect(err).NotTo(HaveOccurred())

		meta = entity.Metadata{
			Title:  "Cool Jamz",
			Artist: "The Dummies",
		}
	})

	newAudioInput := func() remux.AudioInput {
		return remux.AudioInput{
			Format: format.Mp3(128),
			Stream: streamOf(dummy.Mp3Fixture()),
		}
	}

	newCoverInput := func() *remux.CoverInput {
		return &remux.CoverInput{
			Format: format.CoverFormatJpeg,
			Stream: streamOf(dummy.JpegFixture()),
		}
	}

	drainAndReadTags := func(stream *bytestream.Stream) tag.Metadata {
		buffer := bytes.Buffer{}
		_, err := stream.SaveTo(&buffer)
		Expect(err).NotTo(HaveOccurred())

		trackMeta, err := tag.ReadFrom(bytes.NewReader(buffer.Bytes()))
		Expect(err).NotTo(HaveOccurred())
		return trackMeta
	}

	tempDirEmpty := func() bool {
		entries, err := os.ReadDir(filepath.Join(workingDir, "tmp"))
		if err != nil {
			return false
		}

		return len(entries) == 0
	}

	Describe("Remuxing audio only", func() {
		It("produces a tagged container in the input format", func() {
			outStream, err := engine.Remux(newAudioInput(), nil, meta)
			Expect(err).NotTo(HaveOccurred())

			trackMeta := drainAndReadTags(outStream)
			Expect(trackMeta.Title()).To(Equal("Cool Jamz"))
			Expect(trackMeta.Artist()).To(Equal("The Dummies"))
			Expect(trackMeta.Picture()).To(BeNil())
		})

		It("writes optional tags only when set", func() {
			meta.Album = "Greatest Hits"
			meta.Genre = "Noise"

			outStream, err := engine.Remux(newAudioInput(), nil, meta)
			Expect(err).NotTo(HaveOccurred())

			trackMeta := drainAndReadTags(outStream)
			Expect(trackMeta.Album()).To(Equal("Greatest Hits"))
			Expect(trackMeta.Genre()).To(Equal("Noise"))
		})
	})

	Describe("Remuxing with cover art", func() {
		It("embeds the cover as an attached picture", func() {
			outStream, err := engine.Remux(newAudioInput(), newCoverInput(), meta)
			Expect(err).NotTo(HaveOccurred())

			trackMeta := drainAndReadTags(outStream)
			Expect(trackMeta.Title()).To(Equal("Cool Jamz"))
			Expect(trackMeta.Picture()).NotTo(BeNil())
		})

		It("ships the track without the cover when the cover bytes are unusable", func() {
			cover := &remux.CoverInput{
				Format: format.CoverFormatJpeg,
				Stream: streamOf([]byte("this is not an image")),
			}

			outStream, err := engine.Remux(newAudioInput(), cover, meta)
			Expect(err).NotTo(HaveOccurred())

			trackMeta := drainAndReadTags(outStream)
			Expect(trackMeta.Title()).To(Equal("Cool Jamz"))
			Expect(trackMeta.Picture()).To(BeNil())
		})
	})

	Describe("Mandatory metadata", func() {
		It("rejects a missing title", func() {
			meta.Title = ""
			_, err := engine.Remux(newAudioInput(), nil, meta)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a missing artist", func() {
			meta.Artist = ""
			_, err := engine.Remux(newAudioInput(), nil, meta)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Unusable audio", func() {
		It("fails with ErrRemux", func() {
			audio := remux.AudioInput{
				Format: format.Flac(),
				Stream: streamOf([]byte("this is not a flac file")),
			}

			_, err := engine.Remux(audio, nil, meta)
			Expect(err).To(MatchError(remux.ErrRemux))
		})

		It("fails with ErrNoAudioStream when the input carries no audio stream", func() {
			// a valid image probes fine but yields only a video typed stream
			audio := remux.AudioInput{
				Format: format.Mp3(128),
				Stream: streamOf(dummy.JpegFixture()),
			}

			_, err := engine.Remux(audio, nil, meta)
			Expect(err).To(MatchError(remux.ErrNoAudioStream))
			Expect(err).To(MatchError(remux.ErrRemux))

			Eventually(tempDirEmpty).Should(BeTrue())
		})
	})

	Describe("Input stream lifecycle", func() {
		It("releases both input producers when validation aborts the call", func() {
			audioReader := &endlessReader{}
			coverReader := &endlessReader{}

			audio := remux.AudioInput{
				Format: format.Mp3(128),
				Stream: bytestream.FromReader(audioReader),
			}
			cover := &remux.CoverInput{
				Format: format.CoverFormatJpeg,
				Stream: bytestream.FromReader(coverReader),
			}

			meta.Title = ""
			_, err := engine.Remux(audio, cover, meta)
			Expect(err).To(HaveOccurred())

			Eventually(audioReader.closed.Load).Should(BeTrue())
			Eventually(coverReader.closed.Load).Should(BeTrue())
		})

		It("releases the cover producer when the audio side fails mid-staging", func() {
			audioSender, audioStream := bytestream.Pipe()
			audioSender.Fail(errors.New("upstream went away"))

			coverReader := &endlessReader{}
			cover := &remux.CoverInput{
				Format: format.CoverFormatJpeg,
				Stream: bytestream.FromReader(coverReader),
			}

			audio := remux.AudioInput{
				Format: format.Mp3(128),
				Stream: audioStream,
			}

			_, err := engine.Remux(audio, cover, meta)
			Expect(err).To(HaveOccurred())

			Eventually(coverReader.closed.Load).Should(BeTrue())
			Eventually(tempDirEmpty).Should(BeTrue())
		})
	})

	Describe("Workspace lifecycle", func() {
		It("leaves nothing behind after the output stream is drained", func() {
			outStream, err := engine.Remux(newAudioInput(), newCoverInput(), meta)
			Expect(err).NotTo(HaveOccurred())

			buffer := bytes.Buffer{}
			_, err = outStream.SaveTo(&buffer)
			Expect(err).NotTo(HaveOccurred())

			Eventually(tempDirEmpty).Should(BeTrue())
		})

		It("leaves nothing behind when the consumer drops the output stream", func() {
			outStream, err := engine.Remux(newAudioInput(), nil, meta)
			Expect(err).NotTo(HaveOccurred())

			outStream.Close()
			Eventually(tempDirEmpty).Should(BeTrue())
		})

		It("leaves nothing behind after a failure", func() {
			audio := remux.AudioInput{
				Format: format.Flac(),
				Stream: streamOf([]byte("this is not a flac file")),
			}

			_, err := engine.Remux(audio, nil, meta)
			Expect(err).To(HaveOccurred())

			Eventually(tempDirEmpty).Should(BeTrue())
		})
	})
})
