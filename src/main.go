package main

import (
	"os"

	"trackmux/src/application"
	"trackmux/src/lib/env"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

func main() {
	configureLogging()

	app := application.NewApp()
	app.Start()
	waitForever()
}

func configureLogging() {
	if env.Get() == env.Production {
		log.SetHandler(json.New(os.Stdout))
	} else {
		log.SetHandler(text.New(os.Stdout))
	}
}

func waitForever() {
	<-make(chan bool)
}
