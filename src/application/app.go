package application

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	filestore "trackmux/src/application/delivery/store"
	"trackmux/src/application/jobs/download"
	remuxjob "trackmux/src/application/jobs/remux"
	"trackmux/src/application/publish"
	"trackmux/src/application/worker"
	"trackmux/src/client"
	"trackmux/src/modules/hifi"
	"trackmux/src/modules/qobuz"
	"trackmux/src/modules/yandex"
	"trackmux/src/remux"

	"github.com/apex/log"

	"github.com/streadway/amqp"
)

func getEnvOrPanic(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("No env variable found for key %s", key))
	}

	return val
}

func ensureOk(err error) {
	if err != nil {
		panic(err)
	}
}

type App struct {
	workers []worker.QueueWorker
}

func NewApp() App {
	rabbitURL := getEnvOrPanic("RABBITMQ_URL")
	consumerConn, err := amqp.Dial(rabbitURL)
	ensureOk(err)
	producerConn, err := amqp.Dial(rabbitURL)
	ensureOk(err)

	workers := []worker.QueueWorker{}
	numWorkers := getNumWorkers()
	for i := 0; i < numWorkers; i++ {
		workers = append(workers, newWorker(consumerConn, producerConn))
	}

	return App{
		workers: workers,
	}
}

func (a *App) Start() {
	for _, queueWorker := range a.workers {
		go func(worker worker.QueueWorker) {
			err := worker.Start()
			if err != nil {
				log.Error("Failed to start worker!")
			}
		}(queueWorker)
	}
}

func getNumWorkers() int {
	numWorkersStr := getEnvOrPanic("NUM_WORKERS")
	numWorkers, err := strconv.Atoi(numWorkersStr)
	ensureOk(err)
	return numWorkers
}

func newWorker(consumerConn *amqp.Connection, producerConn *amqp.Connection) worker.QueueWorker {
	publisher := newPublisher(producerConn)
	trackClient := newTrackClient()
	fileStore := newGoogleFileStore()
	bucketName := getEnvOrPanic("GOOGLE_CLOUD_STORAGE_BUCKET_NAME")

	queueWorker, err := worker.NewQueueWorkerFromConnection(
		consumerConn,
		queueName(),
		[]worker.MessageHandler{
			download.NewJobHandler(trackClient, fileStore, bucketName, publisher),
			remuxjob.NewJobHandler(trackClient, fileStore, bucketName),
		})
	ensureOk(err)
	return queueWorker
}

func queueName() string {
	return getEnvOrPanic("RABBITMQ_QUEUE_NAME")
}

func newPublisher(conn *amqp.Connection) publish.RabbitMQPublisher {
	publisher, err := publish.NewRabbitMQPublisher(conn, queueName())
	ensureOk(err)
	return publisher
}

func newGoogleFileStore() filestore.GoogleFileStore {
	jsonKey := getEnvOrPanic("GOOGLE_CLOUD_KEY")

	fileStore, err := filestore.NewGoogleFileStore(jsonKey)
	ensureOk(err)
	return fileStore
}

// newTrackClient registers every module whose credentials are configured.
// Registration order is dispatch order, so qobuz is preferred for URLs it
// shares with other modules.
func newTrackClient() *client.Client {
	workingDir := getEnvOrPanic("REMUX_WORKING_DIR_PATH")
	engine, err := remux.NewEngine(workingDir)
	ensureOk(err)

	trackClient := client.NewClient(engine)

	if token := os.Getenv("QOBUZ_TOKEN"); token != "" {
		trackClient.AddModule(qobuz.New(qobuz.Config{
			Token:     token,
			AppID:     getEnvOrPanic("QOBUZ_APP_ID"),
			AppSecret: getEnvOrPanic("QOBUZ_APP_SECRET"),
		}))
	}

	if token := os.Getenv("YANDEX_TOKEN"); token != "" {
		trackClient.AddModule(yandex.New(yandex.Config{
			Token: token,
		}))
	}

	if hosts := os.Getenv("HIFI_HOSTS"); hosts != "" {
		trackClient.AddModule(hifi.New(hifi.Config{
			Hosts: strings.Split(hosts, ","),
		}))
	}

	return trackClient
}
