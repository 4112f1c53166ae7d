package main

import (
	"log"
	"log/slog"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/infrastructure/camera"
	"camera-color-judge/internal/infrastructure/emitter"
	"camera-color-judge/internal/infrastructure/logger"
	"camera-color-judge/internal/infrastructure/storage"
	"camera-color-judge/internal/presentation/cli"
)

func main() {
	// Parse flags before anything else so the logger can be configured
	cliApp := cli.NewCLI(nil, nil)
	flags := cliApp.ParseFlags()

	settings, err := flags.Resolve()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	slogLogger := logger.NewSlogLogger(settings.Log.Debug, settings.Log.Format)
	slog.SetDefault(slogLogger.Slog())

	// Infrastructure
	cameraManager := camera.NewManager(slogLogger.With("component", "camera"), nil)

	// Application service
	service := application.NewColorJudgeService(cameraManager, settings.ServiceOptions(), slogLogger)
	service.AddResultSink(cli.NewResultLogger(slogLogger.With("component", "sampler")))

	cliApp = cli.NewCLI(service, slogLogger)
	cliApp.SetConfig(flags)

	snapshots, err := storage.NewSnapshotWriter(settings.Snapshots.Dir, slogLogger.With("component", "snapshots"))
	if err != nil {
		slogLogger.Warn("snapshots disabled", "error", err)
	} else {
		cliApp.SetSnapshots(snapshots)
	}

	if settings.MQTT.Enabled {
		mqttEmitter := emitter.NewMQTTEmitter(settings.MQTT, slogLogger.With("component", "mqtt"))
		service.AddResultSink(mqttEmitter)
		service.AddStateObserver(mqttEmitter)
		cliApp.SetEmitter(mqttEmitter)
	}

	if err := cliApp.Run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
