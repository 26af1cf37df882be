// Package remux merges one audio elementary stream and at most one cover
// image into a freshly tagged container, copying codec data verbatim. The
// underlying FFmpeg muxer needs seekable inputs, so both streams are staged
// to disk in full before any container work happens.
package remux

import (
	"context"
	"errors"
	"path/filepath"

	"trackmux/src/lib/bytestream"
	"trackmux/src/lib/cerr"
	"trackmux/src/lib/format"
	"trackmux/src/lib/working_dir"
	"trackmux/src/music/entity"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
)

// ErrRemux marks any failure inside the mux pipeline.
var ErrRemux = errors.New("remux error")

// ErrNoAudioStream is the remux failure for an audio input that contains no
// audio typed stream at all.
var ErrNoAudioStream = errors.New("no audio stream in input")

type AudioInput struct {
	Format format.AudioFormat
	Stream *bytestream.Stream
}

type CoverInput struct {
	Format format.CoverFormat
	Stream *bytestream.Stream
}

type Engine struct {
	workingDir working_dir.WorkingDir
}

func NewEngine(workingDirStr string) (Engine, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return Engine{}, cerr.Field("working_dir_str", workingDirStr).
			Wrap(err).Error("Failed to create remux working dir")
	}

	return Engine{
		workingDir: workingDir,
	}, nil
}

// Remux stages the inputs, muxes them into one container tagged with meta,
// and restreams the finished file. The staging directory is destroyed on
// every exit path; the output file lives until its stream is fully consumed
// or dropped. Codec compatibility with the target container is not checked
// here, that is the caller's responsibility.
func (e Engine) Remux(audio AudioInput, cover *CoverInput, meta entity.Metadata) (*bytestream.Stream, error) {
	// dropping the consumer handles is what stops the input producers, so
	// they must be released on every path, consumed or not
	defer audio.Stream.Close()
	if cover != nil {
		defer cover.Stream.Close()
	}

	if meta.Title == "" || meta.Artist == "" {
		return nil, cerr.Error("Metadata must carry at least a title and an artist")
	}

	stagingDir, removeStagingDir, err := e.workingDir.MakeScratchDir("remux-in")
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to create staging dir")
	}
	defer removeStagingDir()

	audioPath, coverPath, err := stageInputs(stagingDir, audio, cover)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to stage input streams")
	}

	outDir, removeOutDir, err := e.workingDir.MakeScratchDir("remux-out")
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to create output dir")
	}

	outPath := filepath.Join(outDir, "out."+audio.Format.Extension())
	if err := muxFiles(audioPath, coverPath, outPath, meta); err != nil {
		removeOutDir()
		return nil, cerr.Wrap(errors.Join(ErrRemux, err)).Error("Failed to remux staged inputs")
	}

	outStream, err := bytestream.FromFile(outPath, removeOutDir)
	if err != nil {
		return nil, cerr.Field("out_path", outPath).
			Wrap(err).Error("Failed to restream remuxed output")
	}

	return outStream, nil
}

// stageInputs drains both input streams to files inside stagingDir, in
// parallel. The returned cover path is empty when there is no cover.
func stageInputs(stagingDir string, audio AudioInput, cover *CoverInput) (string, string, error) {
	logger := log.WithField("staging_dir", stagingDir)
	logger.Info("Staging input streams")

	audioPath := filepath.Join(stagingDir, "audio."+audio.Format.Extension())

	coverPath := ""
	if cover != nil {
		coverPath = filepath.Join(stagingDir, "cover."+cover.Format.Extension())
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := audio.Stream.SaveToFile(audioPath); err != nil {
			return cerr.Field("audio_path", audioPath).
				Wrap(err).Error("Failed to stage audio stream")
		}
		return nil
	})

	if cover != nil {
		g.Go(func() error {
			if err := cover.Stream.SaveToFile(coverPath); err != nil {
				return cerr.Field("cover_path", coverPath).
					Wrap(err).Error("Failed to stage cover stream")
			}
			return nil
		})
	}

	// the first failure cancels the context, which drops both stream handles
	// so the surviving stage branch is not left blocked mid-drain
	go func() {
		<-ctx.Done()
		audio.Stream.Close()
		if cover != nil {
			cover.Stream.Close()
		}
	}()

	if err := g.Wait(); err != nil {
		return "", "", err
	}

	logger.Info("Finished staging input streams")
	return audioPath, coverPath, nil
}
