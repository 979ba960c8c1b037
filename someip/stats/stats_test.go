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

package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

func TestStatsCountersIncrement(t *testing.T) {
	s := New()
	s.IncRX(someip.Request)
	s.IncRX(someip.Request)
	s.IncTX(someip.Response)
	s.SetActiveReassemblies(3)
	s.SetOfferedServices(2)
	s.IncSessionTimeout()
	s.IncReassemblyAbandoned()

	assert.Equal(t, float64(2), testutil.ToFloat64(s.rx.WithLabelValues("REQUEST")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.tx.WithLabelValues("RESPONSE")))
	assert.Equal(t, float64(3), testutil.ToFloat64(s.activeReassemblies))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.offeredServices))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.sessionTimeouts))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.reassemblyAbandoned))

	require.NotNil(t, s.Registry())
}
