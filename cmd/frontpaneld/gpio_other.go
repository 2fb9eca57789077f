//go:build !linux

package main

import (
	"errors"

	"github.com/agalue/lva/internal/config"
	"github.com/agalue/lva/internal/frontpanel"
)

func newGPIOInputSource(cfg *config.Config) (frontpanel.InputSource, error) {
	return nil, errors.New("GPIO hardware is only supported on linux")
}
