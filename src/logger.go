package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger from the logging section of the config.
func newLogger(cfg LoggingConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level := strings.ToLower(cfg.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s'", cfg.Level)
	}
	log.SetLevel(lvl)

	switch cfg.Format {
	case "json", "":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return nil, fmt.Errorf("invalid log format '%s'", cfg.Format)
	}

	switch cfg.Output {
	case "stdout", "":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		if cfg.MaxAge > 0 {
			log.SetOutput(&lumberjack.Logger{
				Filename: cfg.Output,
				MaxAge:   cfg.MaxAge,
				MaxSize:  100,
				Compress: true,
			})
		} else {
			file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file '%s': %w", cfg.Output, err)
			}
			log.SetOutput(file)
		}
	}

	return log, nil
}

func withComponent(log logrus.FieldLogger, component string) *logrus.Entry {
	return log.WithField("component", component)
}
