package main

import (
	"github.com/espack/espack/internal/api"
	"github.com/espack/espack/internal/app"
	"github.com/espack/espack/internal/streams"
	"github.com/espack/espack/pkg/shell"
)

func main() {
	app.Init() // init config and logs

	api.Init()     // init HTTP API server
	streams.Init() // load and start pipelines

	shell.RunUntilSignal()

	streams.Stop()
}
