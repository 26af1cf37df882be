package dummy

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// Mp3Fixture builds a short silent MPEG-1 layer III payload that real
// demuxers accept. 128kbps at 44.1kHz gives a fixed 417 byte frame.
func Mp3Fixture() []byte {
	const frameSize = 417
	const frameCount = 16

	frame := make([]byte, frameSize)
	frame[0] = 0xFF
	frame[1] = 0xFB
	frame[2] = 0x90
	frame[3] = 0x00

	payload := bytes.Buffer{}
	for i := 0; i < frameCount; i++ {
		payload.Write(frame)
	}

	return payload.Bytes()
}

// JpegFixture encodes a tiny valid jpeg for cover art tests.
func JpegFixture() []byte {
	return encodeCover(func(buffer *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(buffer, img, nil)
	})
}

// PngFixture encodes a tiny valid png for cover art tests.
func PngFixture() []byte {
	return encodeCover(func(buffer *bytes.Buffer, img image.Image) error {
		return png.Encode(buffer, img)
	})
}

func encodeCover(encode func(*bytes.Buffer, image.Image) error) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: 0x80, G: 0x40, B: 0xC0, A: 0xFF})
		}
	}

	buffer := bytes.Buffer{}
	if err := encode(&buffer, img); err != nil {
		panic(err)
	}

	return buffer.Bytes()
}
