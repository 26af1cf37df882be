// sender is a small utility to drop a download job onto the queue by hand.
package main

import (
	"flag"
	"os"

	"trackmux/src/application/jobs/download"
	"trackmux/src/application/jobs/job_message"
	"trackmux/src/music/entity"

	"github.com/google/uuid"

	"github.com/streadway/amqp"
)

func main() {
	trackURL := flag.String("url", "", "track URL to download")
	coverURL := flag.String("cover", "", "cover art URL (optional)")
	title := flag.String("title", "", "track title")
	artist := flag.String("artist", "", "track artist")
	album := flag.String("album", "", "album title (optional)")
	flag.Parse()

	if *trackURL == "" || *title == "" || *artist == "" {
		panic("url, title and artist are required")
	}

	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		panic("Can't get rabbitmq url")
	}

	queueName := os.Getenv("RABBITMQ_QUEUE_NAME")
	if queueName == "" {
		panic("Can't get rabbitmq queue name")
	}

	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	rabbitChannel, err := conn.Channel()
	if err != nil {
		panic(err)
	}
	defer rabbitChannel.Close()

	queue, err := rabbitChannel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		panic(err)
	}

	job, err := download.CreateJobMessage(download.JobParams{
		JobIdentifier: job_message.JobIdentifier{JobID: uuid.NewString()},
		TrackURL:      *trackURL,
		CoverURL:      *coverURL,
		Metadata: entity.Metadata{
			Title:  *title,
			Artist: *artist,
			Album:  *album,
		},
	})
	if err != nil {
		panic(err)
	}

	job.DeliveryMode = amqp.Persistent
	job.ContentType = "application/json"

	err = rabbitChannel.Publish("", queue.Name, true, false, job)

	if err != nil {
		panic(err)
	}
}
