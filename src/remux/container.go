package remux

import (
	"errors"

	"trackmux/src/lib/cerr"
	"trackmux/src/music/entity"

	"github.com/apex/log"
	"github.com/asticode/go-astiav"
)

// muxFiles runs the whole demux/mux pass synchronously: it never suspends
// mid-operation, so a single call owns the FFmpeg contexts from open to
// trailer.
func muxFiles(audioPath string, coverPath string, outPath string, meta entity.Metadata) error {
	inAudio, closeInAudio, err := openInput(audioPath)
	if err != nil {
		return cerr.Field("audio_path", audioPath).
			Wrap(err).Error("Failed to open staged audio container")
	}
	defer closeInAudio()

	// a cover that cannot be opened or carries no image stream is skipped,
	// only the audio input is load bearing
	var inCover *astiav.FormatContext
	if coverPath != "" {
		var closeInCover func()
		inCover, closeInCover, err = openInput(coverPath)
		if err != nil {
			log.WithField("cover_path", coverPath).
				Warn("Cover input is unusable, skipping cover track")
			inCover = nil
		} else {
			defer closeInCover()
		}
	}

	out, err := astiav.AllocOutputFormatContext(nil, "", outPath)
	if err != nil {
		return cerr.Field("out_path", outPath).
			Wrap(err).Error("Failed to allocate output container")
	}
	defer out.Free()

	audioIn := firstStreamOfType(inAudio, astiav.MediaTypeAudio)
	if audioIn == nil {
		return cerr.Field("audio_path", audioPath).
			Wrap(ErrNoAudioStream).Error("Staged audio container has no audio stream")
	}

	audioOut, err := addCopyStream(out, audioIn)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to add audio output stream")
	}

	var coverIn, coverOut *astiav.Stream
	if inCover != nil {
		coverIn = firstStreamOfType(inCover, astiav.MediaTypeVideo)
		if coverIn == nil {
			log.WithField("cover_path", coverPath).
				Warn("Cover input has no image stream, skipping cover track")
		} else {
			coverOut, err = addCopyStream(out, coverIn)
			if err != nil {
				return cerr.Wrap(err).Error("Failed to add cover output stream")
			}
			coverOut.SetDisposition(coverOut.Disposition() | astiav.StreamDispositionAttachedPic)
		}
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	for key, value := range meta.Tags() {
		if err := dict.Set(key, value, astiav.NewDictionaryFlags()); err != nil {
			return cerr.Field("tag_key", key).
				Wrap(err).Error("Failed to set metadata tag")
		}
	}
	out.SetMetadata(dict)

	if !out.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioContext, err := astiav.OpenIOContext(outPath, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			return cerr.Field("out_path", outPath).
				Wrap(err).Error("Failed to open output IO context")
		}
		defer func() {
			_ = ioContext.Close()
		}()
		out.SetPb(ioContext)
	}

	if err := out.WriteHeader(nil); err != nil {
		return cerr.Wrap(err).Error("Failed to write output header")
	}

	if err := copyPackets(inAudio, audioIn, out, audioOut); err != nil {
		return cerr.Wrap(err).Error("Failed to copy audio packets")
	}

	if coverOut != nil {
		if err := copyPackets(inCover, coverIn, out, coverOut); err != nil {
			return cerr.Wrap(err).Error("Failed to copy cover packets")
		}
	}

	if err := out.WriteTrailer(); err != nil {
		return cerr.Wrap(err).Error("Failed to write output trailer")
	}

	return nil
}

func openInput(path string) (*astiav.FormatContext, func(), error) {
	inputCtx := astiav.AllocFormatContext()
	if inputCtx == nil {
		return nil, nil, cerr.Error("Failed to allocate input format context")
	}

	if err := inputCtx.OpenInput(path, nil, nil); err != nil {
		inputCtx.Free()
		return nil, nil, cerr.Field("path", path).Wrap(err).Error("Failed to open input")
	}

	if err := inputCtx.FindStreamInfo(nil); err != nil {
		inputCtx.CloseInput()
		inputCtx.Free()
		return nil, nil, cerr.Field("path", path).Wrap(err).Error("Failed to probe input streams")
	}

	closeInput := func() {
		inputCtx.CloseInput()
		inputCtx.Free()
	}

	return inputCtx, closeInput, nil
}

// firstStreamOfType picks the first stream of the wanted media type.
// Additional streams of the same type are deliberately ignored.
func firstStreamOfType(inputCtx *astiav.FormatContext, mediaType astiav.MediaType) *astiav.Stream {
	for _, stream := range inputCtx.Streams() {
		if stream.CodecParameters().MediaType() == mediaType {
			return stream
		}
	}

	return nil
}

// addCopyStream mirrors an input stream on the output container with the
// codec tag zeroed so the target container can pick its own.
func addCopyStream(out *astiav.FormatContext, in *astiav.Stream) (*astiav.Stream, error) {
	outStream := out.NewStream(nil)
	if outStream == nil {
		return nil, cerr.Error("Failed to allocate output stream")
	}

	if err := in.CodecParameters().Copy(outStream.CodecParameters()); err != nil {
		return nil, cerr.Wrap(err).Error("Failed to copy codec parameters")
	}

	outStream.CodecParameters().SetCodecTag(0)
	return outStream, nil
}

// copyPackets forwards every packet of the selected input stream to the
// output stream, rescaling timestamps between the two time bases. Packet
// order within the stream is preserved; interleaving across streams is the
// muxer's job.
func copyPackets(in *astiav.FormatContext, inStream *astiav.Stream, out *astiav.FormatContext, outStream *astiav.Stream) error {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	for {
		if err := in.ReadFrame(pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return cerr.Wrap(err).Error("Failed to read input packet")
		}

		if pkt.StreamIndex() != inStream.Index() {
			pkt.Unref()
			continue
		}

		pkt.RescaleTs(inStream.TimeBase(), outStream.TimeBase())
		pkt.SetStreamIndex(outStream.Index())
		pkt.SetPos(-1)

		if err := out.WriteInterleavedFrame(pkt); err != nil {
			return cerr.Wrap(err).Error("Failed to write output packet")
		}
	}
}
