package format_test

import (
	"trackmux/src/lib/format"

	. "github.com/onsi/gomega"

	. "github.com/onsi/ginkgo"
)

var _ = Describe("AudioFormat", func() {
	It("maps each codec to its container extension", func() {
		Expect(format.Flac().Extension()).To(Equal("flac"))
		Expect(format.Mp3(320).Extension()).To(Equal("mp3"))
		Expect(format.Aac(256).Extension()).To(Equal("m4a"))
	})

	It("maps each codec to its MIME type", func() {
		Expect(format.Flac().MIMEType()).To(Equal("audio/flac"))
		Expect(format.Mp3(320).MIMEType()).To(Equal("audio/mpeg"))
		Expect(format.Aac(256).MIMEType()).To(Equal("audio/mp4"))
	})

	It("carries the bitrate through", func() {
		Expect(format.Mp3(192).Bitrate).To(Equal(192))
		Expect(format.Flac().Bitrate).To(BeZero())
	})

	It("rejects unknown codecs", func() {
		Expect(format.AudioFormat{Codec: "ogg"}.Valid()).To(BeFalse())
		Expect(format.AudioFormat{}.Valid()).To(BeFalse())
		Expect(format.Flac().Valid()).To(BeTrue())
	})

	Describe("ParseAudio", func() {
		It("recognizes MIME types including common aliases", func() {
			parsed, err := format.ParseAudio("audio/x-flac")
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Codec).To(Equal(format.AudioCodecFlac))

			parsed, err = format.ParseAudio("video/mp4")
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Codec).To(Equal(format.AudioCodecAac))
		})

		It("recognizes file name suffixes", func() {
			parsed, err := format.ParseAudio("https://cdn.example.com/track.mp3")
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Codec).To(Equal(format.AudioCodecMp3))
		})

		It("rejects anything else", func() {
			_, err := format.ParseAudio("application/json")
			Expect(err).To(MatchError(format.ErrUnsupported))
		})
	})
})

var _ = Describe("CoverFormat", func() {
	It("maps each format to extension and MIME type", func() {
		Expect(format.CoverFormatPng.Extension()).To(Equal("png"))
		Expect(format.CoverFormatPng.MIMEType()).To(Equal("image/png"))
		Expect(format.CoverFormatJpeg.Extension()).To(Equal("jpg"))
		Expect(format.CoverFormatJpeg.MIMEType()).To(Equal("image/jpeg"))
	})

	Describe("ParseCover", func() {
		It("recognizes MIME types and suffixes", func() {
			parsed, err := format.ParseCover("image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(format.CoverFormatPng))

			parsed, err = format.ParseCover("cover.jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(format.CoverFormatJpeg))
		})

		It("rejects anything else", func() {
			_, err := format.ParseCover("image/webp")
			Expect(err).To(MatchError(format.ErrUnsupported))
		})
	})
})
