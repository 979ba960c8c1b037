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

package protocol

import "sync"

// SessionCounter is a per-peer monotonic 16-bit session_id generator. It
// starts at 1 and wraps from 0xFFFF back to 0x0001, skipping 0 because 0
// means "no session" (spec §4.10). Safe for concurrent use.
type SessionCounter struct {
	mu   sync.Mutex
	next SessionID
}

// NewSessionCounter returns a counter whose first Next() call returns 1.
func NewSessionCounter() *SessionCounter {
	return &SessionCounter{next: 1}
}

// Next returns the current value and advances the counter, wrapping
// 0xFFFF -> 0x0001.
func (c *SessionCounter) Next() SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	if c.next == 0xFFFF {
		c.next = 1
	} else {
		c.next++
	}
	return v
}
