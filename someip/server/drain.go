/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Drainable is implemented by TCPServer and UDPServer.
type Drainable interface {
	Drain()
	Undrain()
}

// FileDrain drains every server it watches whenever a marker file exists,
// and undrains them once it's removed. Adapted from the teacher's
// ptp4u/drain.FileDrain to the SOME/IP servers' Drain/Undrain lifecycle.
type FileDrain struct {
	File     string
	Interval time.Duration
	Servers  []Drainable

	stopCh chan struct{}
}

// DefaultDrainCheckInterval is how often FileDrain polls for the file.
const DefaultDrainCheckInterval = 30 * time.Second

// NewFileDrain builds a FileDrain watching path and controlling servers.
func NewFileDrain(path string, servers ...Drainable) *FileDrain {
	return &FileDrain{
		File:     path,
		Interval: DefaultDrainCheckInterval,
		Servers:  servers,
		stopCh:   make(chan struct{}),
	}
}

// Start polls File at Interval, draining or undraining every watched server.
// Blocks until Stop is called; run it in its own goroutine.
func (f *FileDrain) Start() {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(f.File); err == nil {
			for _, s := range f.Servers {
				s.Drain()
			}
			log.Warn("someip/server: killswitch engaged, draining")
		} else {
			for _, s := range f.Servers {
				s.Undrain()
			}
		}

		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the polling loop.
func (f *FileDrain) Stop() { close(f.stopCh) }
