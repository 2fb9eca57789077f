//go:build linux

package main

import "github.com/agalue/lva/internal/vision"

func newCamera(index int) vision.Camera {
	return vision.NewV4LCamera(index)
}
