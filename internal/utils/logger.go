package utils

import "go.uber.org/zap"

// NewLogger returns a development logger for local runs and a production
// JSON logger otherwise.
func NewLogger(env string) *zap.Logger {
	var log *zap.Logger
	var err error
	if env == "development" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}
