package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
	"github.com/systemstart/secrets-bootstrap/pkg/logging"
	"github.com/systemstart/secrets-bootstrap/pkg/processing"
)

var version = "dev"

const (
	_ = iota
	exitLoggingSetupFailed
	exitDotenvError
	exitLoadSettingsFailed
	exitConfigurationMissing
	exitPipelineFailed
)

var cli struct {
	Config    string           `help:"Settings file (YAML) overriding the built-in defaults." short:"c" type:"path"`
	EnvFile   string           `help:"Dotenv file loaded before the environment is read." default:".env" type:"path"`
	Manifests string           `help:"Manifest directory, overrides manifests.dir from the settings file." short:"m" type:"path"`
	LogType   string           `help:"Logging type: json, text or tint." default:"tint" enum:"json,text,tint"`
	LogLevel  string           `help:"Logging level: debug, info, warn, error." default:"info" enum:"debug,info,warn,error"`
	Version   kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("eso-bootstrap"),
		kong.Description("Install the External Secrets Operator, provision its credentials and wait for secrets to sync."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := logging.Initialize(cli.LogType, cli.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(exitLoggingSetupFailed)
	}

	includeEnv()
	settings := loadSettings()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator := processing.New(command.NewRunner(), settings, os.LookupEnv)
	report := orchestrator.Run(ctx)
	report.Log(slog.Default())

	if !report.Succeeded() {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", report.Err)
		stop()
		if report.FailedStep == processing.StepConfig {
			os.Exit(exitConfigurationMissing)
		}
		os.Exit(exitPipelineFailed)
	}

	slog.Info("done")
}

func includeEnv() {
	err := godotenv.Load(cli.EnvFile)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load dotenv file", "filename", cli.EnvFile, "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Info("no dotenv file found", "filename", cli.EnvFile)
	} else {
		slog.Info("using dotenv file", "filename", cli.EnvFile)
	}
}

func loadSettings() *api.Settings {
	settings, err := api.LoadSettings(cli.Config)
	if err != nil {
		slog.Error("failed to load settings", "filename", cli.Config, "error", err)
		os.Exit(exitLoadSettingsFailed)
	}

	if cli.Manifests != "" {
		settings.Manifests.Dir = cli.Manifests
		if err := settings.Validate(); err != nil {
			slog.Error("invalid settings", "error", err)
			os.Exit(exitLoadSettingsFailed)
		}
	}

	slog.Debug("settings loaded", "file", settings.FilePath, "manifests", settings.Manifests.Dir, "release", settings.Operator.Release)
	return settings
}
