package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"nanocall.com/ffd/api"
	"nanocall.com/ffd/logger"
	"nanocall.com/ffd/pipeline"
	"nanocall.com/ffd/types"
	"nanocall.com/ffd/worker"
)

type Config struct {
	ConfigPath    string `envconfig:"FF_CONFIG_PATH" required:"true"`
	ModelDirPath  string `envconfig:"FF_MODEL_DIR_PATH" required:"true"`
	RestAPIActive bool   `envconfig:"FF_REST_API_ACTIVE" default:"false"`
	RestAPIPort   string `envconfig:"FF_REST_API_PORT" default:"10000"`
}

const pipelineStartMaxRetries = 5

func main() {
	logger.SetupLogging()
	ffLogger := logger.NewLogger("Main")
	fatalErrLogger := ffLogger.Fatal().Caller()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}

	// Load pipeline
	pipelineChannel := make(chan pipeline.Pipeline)
	go func() {
		for retry := 0; retry < pipelineStartMaxRetries; retry++ {
			cfgs, err := types.LoadConfigurations(config.ConfigPath)
			if err != nil || len(cfgs) == 0 {
				ffLogger.Err(err).Msg("Failed to load configurations. Retrying in 5 sec")
				time.Sleep(5 * time.Second)
				continue
			}
			ffLogger.Info().Msgf("Loaded %d configurations", len(cfgs))
			ffLogger.Info().Msg("Starting basecall pipeline loading")

			params := pipeline.GetBasecallParams(config.ModelDirPath, cfgs[0])
			ppln, err := pipeline.Basecall(params)
			if err != nil {
				ffLogger.Err(err).Msg("Failed to start basecall pipeline. Retrying in 5 sec")
				time.Sleep(5 * time.Second)
				continue
			}
			ffLogger.Info().Msg("Pipeline loaded")
			pipelineChannel <- ppln
			return
		}
		fatalErrLogger.Msg("Could not start pipeline after 5 retries, exiting")
		os.Exit(1)
	}()

	// block until pipeline loads
	ppln := <-pipelineChannel

	if config.RestAPIActive {
		go func() {
			ffLogger.Info().Msg("Starting API service")
			apiRequest := &api.Request{
				Pipeline: ppln,
			}
			http.HandleFunc("/", apiRequest.ProcessData)
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			ffLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, nil)
			fatalErrLogger.Err(err).Msg("REST API stopped with error")
		}()
	}

	ffLogger.Info().Msg("Start basecall worker")
	for {
		rmqWorker, err := worker.New(ppln)
		if err != nil {
			ffLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		err = rmqWorker.StartWorker()
		if err != nil {
			ffLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}
