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
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

func TestReassemblerTwoSegmentReverseOrder(t *testing.T) {
	// spec §8 scenario 4
	payload := bigPayload(2 * 1392)
	m := someip.NewBuilder(0x42, 0x1).SessionID(7).Payload(payload).Build()
	segs, err := Segment(&m, 1392)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	r := NewReassembler()
	out, err := r.Add(&segs[1])
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = r.Add(&segs[0])
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, payload, out.Payload)
	assert.Equal(t, someip.Request, out.Header.MessageType)
	assert.Equal(t, uint32(8+len(payload)), out.Header.Length)
}

func TestReassemblerConflictingOverlap(t *testing.T) {
	// spec §8 scenario 5
	h := someip.Header{ServiceID: 1, MethodID: 1, ProtocolVersion: someip.ProtocolVersion, InterfaceVersion: 1, MessageType: someip.TpRequest, ReturnCode: someip.Ok}

	seg1 := someip.Message{Header: h, Payload: append(Header{Offset: 0, MoreSegments: true}.Encode(), bytes16('a')...)}
	seg2 := someip.Message{Header: h, Payload: append(Header{Offset: 0, MoreSegments: true}.Encode(), bytes16('b')...)}

	r := NewReassembler()
	_, err := r.Add(&seg1)
	require.NoError(t, err)

	_, err = r.Add(&seg2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting overlap")
	assert.True(t, someip.IsKind(err, someip.KindSegmentationError))
}

func bytes16(fill byte) []byte {
	b := make([]byte, 16)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestReassemblerIdempotentDuplicates(t *testing.T) {
	payload := bigPayload(3000)
	m := someip.NewBuilder(1, 1).Payload(payload).Build()
	segs, err := Segment(&m, 1392)
	require.NoError(t, err)

	r := NewReassembler()
	var out *someip.Message
	for i := 0; i < 2; i++ { // deliver the whole sequence twice
		for j := range segs {
			got, err := r.Add(&segs[j])
			require.NoError(t, err)
			if got != nil {
				out = got
			}
		}
	}
	require.NotNil(t, out)
	assert.Equal(t, payload, out.Payload)
}

func TestReassemblerOutOfOrderRandomized(t *testing.T) {
	payload := bigPayload(9000)
	m := someip.NewBuilder(1, 1).Payload(payload).Build()
	segs, err := Segment(&m, 1392)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(1))
	rnd.Shuffle(len(segs), func(i, j int) { segs[i], segs[j] = segs[j], segs[i] })

	r := NewReassembler()
	var out *someip.Message
	for i := range segs {
		got, err := r.Add(&segs[i])
		require.NoError(t, err)
		if got != nil {
			out = got
		}
	}
	require.NotNil(t, out)
	assert.Equal(t, payload, out.Payload)
}

func TestReassemblerPruneEvictsIncomplete(t *testing.T) {
	r := NewReassembler()
	r.SetTimeout(time.Millisecond)

	h := someip.Header{ServiceID: 9, MethodID: 9, MessageType: someip.TpRequest}
	seg := someip.Message{Header: h, Payload: append(Header{Offset: 0, MoreSegments: true}.Encode(), bytes16('z')...)}
	_, err := r.Add(&seg)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	r.Prune()

	select {
	case err := <-r.Errors():
		assert.Contains(t, err.Error(), "incomplete transfer")
	default:
		t.Fatal("expected an incomplete-transfer error to be emitted")
	}
}
