package format

import (
	"errors"
	"strings"
)

// ErrUnsupported is returned when a MIME type or file name cannot be mapped
// to a known audio or cover format.
var ErrUnsupported = errors.New("unsupported media format")

type AudioCodec string

const (
	AudioCodecFlac AudioCodec = "flac"
	AudioCodecMp3  AudioCodec = "mp3"
	AudioCodecAac  AudioCodec = "aac"
)

// audioTraits is the single source of truth for the extension/MIME pairing
// of each audio codec. Everything else derives from this table.
var audioTraits = map[AudioCodec]struct {
	extension string
	mimeType  string
}{
	AudioCodecFlac: {extension: "flac", mimeType: "audio/flac"},
	AudioCodecMp3:  {extension: "mp3", mimeType: "audio/mpeg"},
	AudioCodecAac:  {extension: "m4a", mimeType: "audio/mp4"},
}

// AudioFormat identifies the codec of an audio payload. Bitrate is carried
// along for display purposes only, it is never renegotiated.
type AudioFormat struct {
	Codec   AudioCodec `json:"codec"`
	Bitrate int        `json:"bitrate,omitempty"`
}

func Flac() AudioFormat {
	return AudioFormat{Codec: AudioCodecFlac}
}

func Mp3(bitrate int) AudioFormat {
	return AudioFormat{Codec: AudioCodecMp3, Bitrate: bitrate}
}

func Aac(bitrate int) AudioFormat {
	return AudioFormat{Codec: AudioCodecAac, Bitrate: bitrate}
}

func (a AudioFormat) Extension() string {
	return audioTraits[a.Codec].extension
}

func (a AudioFormat) MIMEType() string {
	return audioTraits[a.Codec].mimeType
}

func (a AudioFormat) Valid() bool {
	_, ok := audioTraits[a.Codec]
	return ok
}

// ParseAudio maps a MIME type or a file/URL name to an AudioFormat. Bitrate
// cannot be recovered from either, so it is left at zero.
func ParseAudio(value string) (AudioFormat, error) {
	switch value {
	case "audio/flac", "audio/x-flac":
		return Flac(), nil
	case "audio/mpeg", "audio/mpg":
		return Mp3(0), nil
	case "audio/mp4", "video/mp4", "audio/aac":
		return Aac(0), nil
	}

	switch {
	case strings.HasSuffix(value, ".flac"):
		return Flac(), nil
	case strings.HasSuffix(value, ".mp3"):
		return Mp3(0), nil
	case strings.HasSuffix(value, ".m4a"), strings.HasSuffix(value, ".mp4"):
		return Aac(0), nil
	}

	return AudioFormat{}, ErrUnsupported
}

type CoverFormat string

const (
	CoverFormatPng  CoverFormat = "png"
	CoverFormatJpeg CoverFormat = "jpeg"
)

var coverTraits = map[CoverFormat]struct {
	extension string
	mimeType  string
}{
	CoverFormatPng:  {extension: "png", mimeType: "image/png"},
	CoverFormatJpeg: {extension: "jpg", mimeType: "image/jpeg"},
}

func (c CoverFormat) Extension() string {
	return coverTraits[c].extension
}

func (c CoverFormat) MIMEType() string {
	return coverTraits[c].mimeType
}

func (c CoverFormat) Valid() bool {
	_, ok := coverTraits[c]
	return ok
}

// ParseCover maps a MIME type or a file/URL name to a CoverFormat.
func ParseCover(value string) (CoverFormat, error) {
	switch value {
	case "image/png":
		return CoverFormatPng, nil
	case "image/jpeg":
		return CoverFormatJpeg, nil
	}

	switch {
	case strings.HasSuffix(value, ".png"):
		return CoverFormatPng, nil
	case strings.HasSuffix(value, ".jpg"), strings.HasSuffix(value, ".jpeg"):
		return CoverFormatJpeg, nil
	}

	return "", ErrUnsupported
}
