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

func TestHeaderRoundTrip(t *testing.T) {
	for _, h := range []Header{
		{Offset: 0, MoreSegments: true},
		{Offset: 1392, MoreSegments: false},
		{Offset: 16, MoreSegments: true},
	} {
		b := h.Encode()
		require.Len(t, b, HeaderSize)
		got, err := DecodeHeader(b)
		require.NoError(t, err)
		assert.Equal(t, h, got)
	}
}

func TestDecodeHeaderRejectsReservedBits(t *testing.T) {
	b := []byte{0x00, 0x00, 0x00, 0x02} // bit 1 set
	_, err := DecodeHeader(b)
	require.Error(t, err)
	assert.True(t, someip.IsKind(err, someip.KindSegmentationError))
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	_, err := DecodeHeader([]byte{0x00, 0x00})
	require.Error(t, err)
	assert.True(t, someip.IsKind(err, someip.KindSegmentationError))
}
