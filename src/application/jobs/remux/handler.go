package remux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"trackmux/src/application/delivery/entity"
	"trackmux/src/application/delivery/store"
	"trackmux/src/application/jobs/job_message"
	"trackmux/src/application/worker"
	"trackmux/src/client"
	"trackmux/src/lib/bytestream"
	"trackmux/src/lib/cerr"
	"trackmux/src/lib/format"
	musicentity "trackmux/src/music/entity"
	remuxer "trackmux/src/remux"

	"github.com/apex/log"

	"github.com/streadway/amqp"
)

var _ worker.MessageHandler = JobHandler{}

const JobType string = "remux_track"

type JobParams struct {
	job_message.JobIdentifier
	StagedAudioURL string               `json:"staged_audio_url"`
	AudioFormat    format.AudioFormat   `json:"audio_format"`
	StagedCoverURL string               `json:"staged_cover_url,omitempty"`
	CoverFormat    format.CoverFormat   `json:"cover_format,omitempty"`
	Metadata       musicentity.Metadata `json:"metadata"`
}

func CreateJobMessage(params JobParams) (amqp.Publishing, error) {
	jsonBytes, err := json.Marshal(params)
	if err != nil {
		return amqp.Publishing{}, cerr.Wrap(err).Error("Failed to marshal job params")
	}

	return amqp.Publishing{
		Type: JobType,
		Body: jsonBytes,
	}, nil
}

func NewJobHandler(trackClient *client.Client, fileStore entity.FileStore, bucketName string) JobHandler {
	return JobHandler{
		trackClient: trackClient,
		fileStore:   fileStore,
		bucketName:  bucketName,
	}
}

// JobHandler merges the staged audio and cover art into one tagged container
// and publishes the finished file. This is the last job of the chain.
type JobHandler struct {
	trackClient *client.Client
	fileStore   entity.FileStore
	bucketName  string
}

func (JobHandler) JobType() string {
	return JobType
}

func (r JobHandler) HandleMessage(message []byte) error {
	params := JobParams{}
	err := json.Unmarshal(message, &params)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	if params.JobID == "" || params.StagedAudioURL == "" {
		return cerr.Error("Job message is missing a job ID or staged audio URL")
	}

	if !params.AudioFormat.Valid() {
		return cerr.Field("audio_format", params.AudioFormat).
			Error("Job message carries an unknown audio format")
	}

	audio, err := r.loadAudio(params)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to load the staged audio")
	}

	cover, err := r.loadCover(params)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to load the staged cover art")
	}

	outputFormat, outputStream, err := r.trackClient.Remux(audio, cover, params.Metadata)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to remux the track")
	}

	buffer := bytes.Buffer{}
	if _, err := outputStream.SaveTo(&buffer); err != nil {
		return cerr.Wrap(err).Error("Failed to read the remuxed stream")
	}

	outputURL := fmt.Sprintf("%s/%s/%s/remuxed.%s",
		store.GOOGLE_STORAGE_HOST, r.bucketName, params.JobID, outputFormat.Extension())

	if err := r.fileStore.WriteFile(context.Background(), outputURL, buffer.Bytes()); err != nil {
		return cerr.Field("output_url", outputURL).
			Wrap(err).Error("Failed to write the remuxed file")
	}

	r.cleanupStagedFiles(params)

	log.WithFields(log.Fields{
		"job_id":     params.JobID,
		"output_url": outputURL,
	}).Info("Finished remuxing track")

	return nil
}

func (r JobHandler) loadAudio(params JobParams) (remuxer.AudioInput, error) {
	contents, err := r.fileStore.GetFile(context.Background(), params.StagedAudioURL)
	if err != nil {
		return remuxer.AudioInput{}, cerr.Field("staged_audio_url", params.StagedAudioURL).
			Wrap(err).Error("Failed to fetch the staged audio file")
	}

	return remuxer.AudioInput{
		Format: params.AudioFormat,
		Stream: bytestream.FromReader(io.NopCloser(bytes.NewReader(contents))),
	}, nil
}

func (r JobHandler) loadCover(params JobParams) (*remuxer.CoverInput, error) {
	if params.StagedCoverURL == "" {
		return nil, nil
	}

	if !params.CoverFormat.Valid() {
		return nil, cerr.Field("cover_format", params.CoverFormat).
			Error("Job message carries an unknown cover format")
	}

	contents, err := r.fileStore.GetFile(context.Background(), params.StagedCoverURL)
	if err != nil {
		return nil, cerr.Field("staged_cover_url", params.StagedCoverURL).
			Wrap(err).Error("Failed to fetch the staged cover file")
	}

	return &remuxer.CoverInput{
		Format: params.CoverFormat,
		Stream: bytestream.FromReader(io.NopCloser(bytes.NewReader(contents))),
	}, nil
}

// cleanupStagedFiles removes the intermediates. Failures are logged only,
// the finished track is already delivered at this point.
func (r JobHandler) cleanupStagedFiles(params JobParams) {
	stagedURLs := []string{params.StagedAudioURL}
	if params.StagedCoverURL != "" {
		stagedURLs = append(stagedURLs, params.StagedCoverURL)
	}

	for _, stagedURL := range stagedURLs {
		if err := r.fileStore.DeleteFile(context.Background(), stagedURL); err != nil {
			cerr.Log(cerr.Field("staged_url", stagedURL).
				Wrap(err).Error("Failed to delete a staged file"))
		}
	}
}
