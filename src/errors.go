package main

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when no source produced a usable rate.
var ErrNoData = errors.New("no funding rate data available")

type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetching %s funding rates: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config: %s is not set", e.Key)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting funding rates: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type AlertDeliveryError struct {
	Channel string
	Err     error
}

func (e *AlertDeliveryError) Error() string {
	return fmt.Sprintf("delivering %s alert: %v", e.Channel, e.Err)
}

func (e *AlertDeliveryError) Unwrap() error {
	return e.Err
}
