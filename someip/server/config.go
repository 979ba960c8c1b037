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

// Package server implements SOME/IP TCP and UDP servers: a TCP accept loop
// with one goroutine per connection, and a UDP receive loop feeding a
// dispatcher, both sharing the same Drain lifecycle (spec §4.5, §5).
package server

import (
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// StaticConfig holds options that require a server restart to take effect.
type StaticConfig struct {
	Interface          string
	TCPAddr            string
	UDPAddr            string
	LogLevel           string
	MonitoringAddr     string
}

// DynamicConfig holds options reloadable without a restart.
type DynamicConfig struct {
	// ReadTimeout bounds how long a connection read may block (0 = none).
	ReadTimeout time.Duration
	// MaxMessagePayload is the stream codec's payload ceiling.
	MaxMessagePayload int
	// MaxDatagramSize is the datagram transport's receive buffer size.
	MaxDatagramSize int
	// DrainCheckInterval is how often the file-based drain check runs.
	DrainCheckInterval time.Duration
}

// Config is the full server configuration.
type Config struct {
	StaticConfig
	DynamicConfig
}

// ReadDynamicConfig loads a DynamicConfig from a YAML file, for reload
// without a server restart.
func ReadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dc := &DynamicConfig{}
	if err := yaml.Unmarshal(data, dc); err != nil {
		return nil, err
	}
	return dc, nil
}

// Write serializes the DynamicConfig back to a YAML file.
func (dc *DynamicConfig) Write(path string) error {
	d, err := yaml.Marshal(dc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0644)
}
