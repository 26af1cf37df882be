package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"trackmux/src/application/delivery/entity"
	"trackmux/src/application/delivery/store"
	"trackmux/src/application/jobs/job_message"
	"trackmux/src/application/jobs/remux"
	"trackmux/src/application/publish"
	"trackmux/src/application/worker"
	"trackmux/src/client"
	"trackmux/src/lib/cerr"
	"trackmux/src/lib/format"
	musicentity "trackmux/src/music/entity"

	"github.com/apex/log"

	"github.com/streadway/amqp"
)

var _ worker.MessageHandler = JobHandler{}

const JobType string = "download_track"

type JobParams struct {
	job_message.JobIdentifier
	TrackURL string               `json:"track_url"`
	CoverURL string               `json:"cover_url,omitempty"`
	Metadata musicentity.Metadata `json:"metadata"`
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

func NewJobHandler(trackClient *client.Client, fileStore entity.FileStore, bucketName string, publisher publish.Publisher) JobHandler {
	return JobHandler{
		trackClient: trackClient,
		fileStore:   fileStore,
		bucketName:  bucketName,
		publisher:   publisher,
	}
}

// JobHandler pulls a track (and optionally its cover art) from whichever
// service module claims the URL, stages the raw bytes in the file store, and
// queues the remux job.
type JobHandler struct {
	trackClient *client.Client
	fileStore   entity.FileStore
	bucketName  string
	publisher   publish.Publisher
}

func (JobHandler) JobType() string {
	return JobType
}

func (d JobHandler) HandleMessage(message []byte) error {
	params := JobParams{}
	err := json.Unmarshal(message, &params)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	if params.JobID == "" || params.TrackURL == "" {
		return cerr.Error("Job message is missing a job ID or track URL")
	}

	audioFormat, stagedAudioURL, err := d.stageAudio(params)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to stage the track audio")
	}

	nextParams := remux.JobParams{
		JobIdentifier:  params.JobIdentifier,
		StagedAudioURL: stagedAudioURL,
		AudioFormat:    audioFormat,
		Metadata:       params.Metadata,
	}

	if params.CoverURL != "" {
		coverFormat, stagedCoverURL, err := d.stageCover(params)
		if err != nil {
			// cover art is a nice to have, the track still ships without it
			cerr.Log(cerr.Field("cover_url", params.CoverURL).
				Wrap(err).Error("Failed to stage the cover art, continuing without it"))
		} else {
			nextParams.StagedCoverURL = stagedCoverURL
			nextParams.CoverFormat = coverFormat
		}
	}

	err = d.publishRemuxMessage(nextParams)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to publish the next job message")
	}

	return nil
}

func (d JobHandler) stageAudio(params JobParams) (format.AudioFormat, string, error) {
	log.WithField("track_url", params.TrackURL).Info("Downloading track audio")

	audioFormat, stream, err := d.trackClient.Download(params.TrackURL)
	if err != nil {
		return format.AudioFormat{}, "", cerr.Wrap(err).Error("Failed to download track")
	}

	buffer := bytes.Buffer{}
	if _, err := stream.SaveTo(&buffer); err != nil {
		return format.AudioFormat{}, "", cerr.Wrap(err).Error("Failed to read the track stream")
	}

	stagedURL := d.stagedFileURL(params.JobID, "audio."+audioFormat.Extension())
	if err := d.fileStore.WriteFile(context.Background(), stagedURL, buffer.Bytes()); err != nil {
		return format.AudioFormat{}, "", cerr.Field("staged_url", stagedURL).
			Wrap(err).Error("Failed to write the staged audio file")
	}

	return audioFormat, stagedURL, nil
}

func (d JobHandler) stageCover(params JobParams) (format.CoverFormat, string, error) {
	log.WithField("cover_url", params.CoverURL).Info("Downloading cover art")

	coverFormat, stream, err := d.trackClient.DownloadCover(params.CoverURL)
	if err != nil {
		return "", "", cerr.Wrap(err).Error("Failed to download cover art")
	}

	buffer := bytes.Buffer{}
	if _, err := stream.SaveTo(&buffer); err != nil {
		return "", "", cerr.Wrap(err).Error("Failed to read the cover stream")
	}

	stagedURL := d.stagedFileURL(params.JobID, "cover."+coverFormat.Extension())
	if err := d.fileStore.WriteFile(context.Background(), stagedURL, buffer.Bytes()); err != nil {
		return "", "", cerr.Field("staged_url", stagedURL).
			Wrap(err).Error("Failed to write the staged cover file")
	}

	return coverFormat, stagedURL, nil
}

func (d JobHandler) stagedFileURL(jobID string, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/staged/%s", store.GOOGLE_STORAGE_HOST, d.bucketName, jobID, fileName)
}

func (d JobHandler) publishRemuxMessage(params remux.JobParams) error {
	log.Info("Creating remux job message")
	job, err := remux.CreateJobMessage(params)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to create remux job params")
	}

	log.Info("Publishing remux job message")
	err = d.publisher.Publish(job)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to publish next job message")
	}

	return nil
}
