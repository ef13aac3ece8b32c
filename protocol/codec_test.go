package protocol

import (
	"testing"

	"github.com/encodeous/spantree/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleTree() *state.Tree {
	t := state.NewTree()
	t.AddNode(0, true)
	t.AddEdge(0, 1, 1)
	t.AddEdge(1, 2, 2)
	t.SetActivated(1, true)
	return t
}

func TestCodec_Discovery(t *testing.T) {
	msg := &Message{
		Header:  Header{Type: NeighbourDiscovery, From: 3, To: Broadcast, NextHop: Broadcast},
		Payload: &Discovery{Weight: 17},
	}
	b, err := Marshal(msg)
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestCodec_Snapshot(t *testing.T) {
	msg := &Message{
		Header: Header{Type: LocalMST, From: 0, To: 2, NextHop: 1},
		Payload: &TreeUpdate{
			Snapshot:       sampleTree(),
			Manual:         true,
			NextActivation: 2,
		},
	}
	b, err := Marshal(msg)
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, msg.Header, got.Header)
	upd, ok := got.Payload.(*TreeUpdate)
	require.True(t, ok)
	assert.True(t, upd.Snapshot.Equal(sampleTree()))
	assert.Nil(t, upd.Diff)
	assert.True(t, upd.Manual)
	assert.False(t, upd.Compressed)
	assert.Equal(t, state.NodeId(2), upd.NextActivation)
}

func TestCodec_EmptySnapshotKeepsPresence(t *testing.T) {
	msg := &Message{
		Header:  Header{Type: LocalMST, From: 0, To: 1, NextHop: 1},
		Payload: &TreeUpdate{Snapshot: state.NewTree(), NextActivation: state.NoNode},
	}
	b, err := Marshal(msg)
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)
	upd := got.Payload.(*TreeUpdate)
	require.NotNil(t, upd.Snapshot)
	assert.Equal(t, 0, upd.Snapshot.Len())
	assert.Equal(t, state.NoNode, upd.NextActivation)
}

func TestCodec_DiffDeterministic(t *testing.T) {
	build := func(order []int) *state.Diff {
		d := state.NewDiff()
		for _, i := range order {
			id := state.NodeId(i)
			d.Insert(id, id+1, uint32(i+1))
			d.Activate(id)
		}
		d.Delete(0, 2)
		return d
	}
	a := &Message{
		Header:  Header{Type: LocalMST, From: 1, To: 0, NextHop: 0},
		Payload: &TreeUpdate{Diff: build([]int{0, 1, 2, 3, 4}), Compressed: true, NextActivation: state.NoNode},
	}
	b := &Message{
		Header:  a.Header,
		Payload: &TreeUpdate{Diff: build([]int{4, 2, 0, 3, 1}), Compressed: true, NextActivation: state.NoNode},
	}
	ba, err := Marshal(a)
	require.NoError(t, err)
	bb, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ba, bb)

	got, err := Unmarshal(ba)
	require.NoError(t, err)
	assert.Equal(t, a.Payload.(*TreeUpdate).Diff, got.Payload.(*TreeUpdate).Diff)
}

func TestCodec_RejectsInvalid(t *testing.T) {
	_, err := Marshal(&Message{
		Header:  Header{Type: LocalMST},
		Payload: &TreeUpdate{Snapshot: sampleTree(), Diff: state.NewDiff(), Compressed: true},
	})
	assert.ErrorIs(t, err, ErrSnapshotAndDiff)

	_, err = Marshal(&Message{
		Header:  Header{Type: LocalMST},
		Payload: &TreeUpdate{},
	})
	assert.ErrorIs(t, err, ErrSnapshotAndDiff)

	_, err = Marshal(&Message{
		Header:  Header{Type: LocalMST},
		Payload: &Discovery{Weight: 1},
	})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCodec_Malformed(t *testing.T) {
	b, err := Marshal(&Message{
		Header:  Header{Type: LocalMST, From: 0, To: 1, NextHop: 1},
		Payload: &TreeUpdate{Snapshot: sampleTree(), NextActivation: state.NoNode},
	})
	require.NoError(t, err)

	// truncated
	_, err = Unmarshal(b[:len(b)-3])
	assert.ErrorIs(t, err, ErrMalformed)

	// garbage
	_, err = Unmarshal([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformed)

	// no header
	_, err = Unmarshal(nil)
	assert.ErrorIs(t, err, ErrMalformed)

	// wrong wire type for the header
	bad := protowire.AppendTag(nil, fieldMsgHeader, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 1)
	_, err = Unmarshal(bad)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	msg := &Message{
		Header:  Header{Type: NeighbourDiscovery, From: 1, To: Broadcast, NextHop: Broadcast},
		Payload: &Discovery{Weight: 4},
	}
	b, err := Marshal(msg)
	require.NoError(t, err)
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 12)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}
