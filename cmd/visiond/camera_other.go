//go:build !linux

package main

import (
	"log"
	"runtime"

	"github.com/agalue/lva/internal/vision"
)

func newCamera(index int) vision.Camera {
	log.Printf("no camera backend for %s, vision glances will return Error{camera}", runtime.GOOS)
	return vision.NullCamera{}
}
