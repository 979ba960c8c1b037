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

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionCounterStartsAtOne(t *testing.T) {
	c := NewSessionCounter()
	assert.Equal(t, SessionID(1), c.Next())
	assert.Equal(t, SessionID(2), c.Next())
}

func TestSessionCounterWrapsSkippingZero(t *testing.T) {
	c := &SessionCounter{next: 0xFFFF}
	assert.Equal(t, SessionID(0xFFFF), c.Next())
	assert.Equal(t, SessionID(1), c.Next())
}

func TestSessionCounterUniqueWithinWindow(t *testing.T) {
	c := NewSessionCounter()
	seen := make(map[SessionID]bool)
	for i := 0; i < 65534; i++ {
		id := c.Next()
		assert.NotEqual(t, SessionID(0), id)
		assert.False(t, seen[id], "duplicate session id %v", id)
		seen[id] = true
	}
}

func TestSessionCounterConcurrentUse(t *testing.T) {
	c := NewSessionCounter()
	const workers = 16
	const perWorker = 1000

	var mu sync.Mutex
	seen := make(map[SessionID]int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := c.Next()
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, len(seen))
	for id, count := range seen {
		assert.Equal(t, 1, count, "session id %v issued more than once", id)
		assert.NotEqual(t, SessionID(0), id)
	}
}
