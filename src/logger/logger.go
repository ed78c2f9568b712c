package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trading-venue/src/config"
)

var Logger zerolog.Logger
var logFile *os.File

// InitLogger sets the global zerolog logger. Format "pretty" writes a human
// readable console log; anything else writes JSON lines. A file path other
// than "", "none" or "disabled" also receives every line.
func InitLogger(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.File == "" || cfg.File == "none" || cfg.File == "disabled" {
		logFile = nil
	} else {
		logFile, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Error().Err(err).Str("log_file", cfg.File).Msg("Failed to open log file, using stderr only")
			logFile = nil
		}
	}

	var writers []io.Writer

	// stdout carries CLI reports, so logs go to stderr
	if cfg.Format == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stderr)
	}

	if logFile != nil {
		writers = append(writers, logFile)
	}

	Logger = zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Logger()

	log.Logger = Logger

	Logger.Debug().
		Str("log_level", level.String()).
		Bool("log_file", logFile != nil).
		Msg("Logger initialized")
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
}

func GetLogger() zerolog.Logger {
	return Logger
}
