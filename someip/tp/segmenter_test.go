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

package tp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

func bigPayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 251)
	}
	return p
}

func TestSegmentRejectsBadMaxSegment(t *testing.T) {
	m := someip.NewBuilder(1, 1).Payload(bigPayload(10)).Build()
	_, err := Segment(&m, 17)
	require.Error(t, err)
	assert.True(t, someip.IsKind(err, someip.KindSegmentationError))
	_, err = Segment(&m, 0)
	require.Error(t, err)
}

func TestSegmentSetsTPBitAndFinalFlag(t *testing.T) {
	payload := bigPayload(2800)
	m := someip.NewBuilder(0x42, 0x1).MessageType(someip.Request).Payload(payload).Build()

	segs, err := Segment(&m, 1392)
	require.NoError(t, err)
	require.Len(t, segs, 3) // 1392 + 1392 + 16 bytes

	for i, seg := range segs {
		assert.Equal(t, someip.TpRequest, seg.Header.MessageType)
		hdr, err := DecodeHeader(seg.Payload[:HeaderSize])
		require.NoError(t, err)
		if i < len(segs)-1 {
			assert.True(t, hdr.MoreSegments)
		} else {
			assert.False(t, hdr.MoreSegments)
		}
	}
}

func TestSegmentEmptyPayloadYieldsOneFinalSegment(t *testing.T) {
	m := someip.NewBuilder(1, 1).Build()
	segs, err := Segment(&m, 16)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	hdr, err := DecodeHeader(segs[0].Payload[:HeaderSize])
	require.NoError(t, err)
	assert.False(t, hdr.MoreSegments)
	assert.Equal(t, uint32(0), hdr.Offset)
}
