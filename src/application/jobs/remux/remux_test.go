package remux_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"trackmux/src/application/delivery/store"
	"trackmux/src/application/integration_test/dummy"
	"trackmux/src/application/jobs/job_message"
	remuxjob "trackmux/src/application/jobs/remux"
	"trackmux/src/client"
	"trackmux/src/lib/format"
	"trackmux/src/music/entity"
	"trackmux/src/remux"

	"github.com/dhowden/tag"

	. "github.com/onsi/gomega"

	. "github.com/onsi/ginkgo"
)

var _ = Describe("Remux Job Handler", func() {
	var (
		jobID          string
		bucketName     string
		stagedAudioURL string
		stagedCoverURL string

		fileStore *dummy.FileStore
		handler   remuxjob.JobHandler

		message []byte
	)

	stagedURL := func(fileName string) string {
		return fmt.Sprintf("%s/%s/%s/staged/%s", store.GOOGLE_STORAGE_HOST, bucketName, jobID, fileName)
	}

	BeforeEach(func() {
		jobID = "job-ID"
		bucketName = "bucket-head"
		stagedAudioURL = stagedURL("audio.mp3")
		stagedCoverURL = stagedURL("cover.jpg")

		fileStore = dummy.NewDummyFileStore()
		Expect(fileStore.WriteFile(context.Background(), stagedAudioURL, dummy.Mp3Fixture())).To(Succeed())
		Expect(fileStore.WriteFile(context.Background(), stagedCoverURL, dummy.JpegFixture())).To(Succeed())

		engine, err := remux.NewEngine(workingDir)
		Expect(err).NotTo(HaveOccurred())

		handler = remuxjob.NewJobHandler(client.NewClient(engine), fileStore, bucketName)
	})

	Describe("Well formed message", func() {
		BeforeEach(func() {
			var err error
			message, err = json.Marshal(remuxjob.JobParams{
				JobIdentifier:  job_message.JobIdentifier{JobID: jobID},
				StagedAudioURL: stagedAudioURL,
				AudioFormat:    format.Mp3(128),
				StagedCoverURL: stagedCoverURL,
				CoverFormat:    format.CoverFormatJpeg,
				Metadata:       entity.Metadata{Title: "Cool Jamz", Artist: "The Dummies"},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("delivers a tagged track and deletes the staged files", func() {
			err := handler.HandleMessage(message)
			Expect(err).NotTo(HaveOccurred())

			outputURL := fmt.Sprintf("%s/%s/%s/remuxed.mp3", store.GOOGLE_STORAGE_HOST, bucketName, jobID)
			contents, err := fileStore.GetFile(context.Background(), outputURL)
			Expect(err).NotTo(HaveOccurred())

			trackMeta, err := tag.ReadFrom(bytes.NewReader(contents))
			Expect(err).NotTo(HaveOccurred())
			Expect(trackMeta.Title()).To(Equal("Cool Jamz"))
			Expect(trackMeta.Artist()).To(Equal("The Dummies"))
			Expect(trackMeta.Picture()).NotTo(BeNil())

			_, err = fileStore.GetFile(context.Background(), stagedAudioURL)
			Expect(err).To(HaveOccurred())
			_, err = fileStore.GetFile(context.Background(), stagedCoverURL)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Missing staged audio", func() {
		BeforeEach(func() {
			var err error
			message, err = json.Marshal(remuxjob.JobParams{
				JobIdentifier:  job_message.JobIdentifier{JobID: jobID},
				StagedAudioURL: stagedURL("not-here.mp3"),
				AudioFormat:    format.Mp3(128),
				Metadata:       entity.Metadata{Title: "Cool Jamz", Artist: "The Dummies"},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns error", func() {
			err := handler.HandleMessage(message)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Unknown audio format", func() {
		BeforeEach(func() {
			var err error
			message, err = json.Marshal(remuxjob.JobParams{
				JobIdentifier:  job_message.JobIdentifier{JobID: jobID},
				StagedAudioURL: stagedAudioURL,
				AudioFormat:    format.AudioFormat{Codec: "ogg"},
				Metadata:       entity.Metadata{Title: "Cool Jamz", Artist: "The Dummies"},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns error", func() {
			err := handler.HandleMessage(message)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Poorly formed message", func() {
		BeforeEach(func() {
			var err error
			message, err = json.Marshal(remuxjob.JobParams{
				StagedAudioURL: stagedAudioURL,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns error", func() {
			err := handler.HandleMessage(message)
			Expect(err).To(HaveOccurred())
		})
	})
})
