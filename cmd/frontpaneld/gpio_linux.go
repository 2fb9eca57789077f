//go:build linux

package main

import (
	"github.com/agalue/lva/internal/config"
	"github.com/agalue/lva/internal/frontpanel"
)

func newGPIOInputSource(cfg *config.Config) (frontpanel.InputSource, error) {
	return frontpanel.NewGPIOInputSource(frontpanel.GPIOLines{
		ChipName:  cfg.GPIOChip,
		TouchLine: cfg.GPIOTouch,
		EncALine:  cfg.GPIOEncoderA,
		EncBLine:  cfg.GPIOEncoderB,
	})
}
