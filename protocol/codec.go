package protocol

import (
	"fmt"
	"math"

	"github.com/encodeous/spantree/state"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers follow spantree.proto. Repeated fields are written in sorted
// order, so equal values encode to identical bytes.
const (
	fieldMsgHeader    protowire.Number = 1
	fieldMsgDiscovery protowire.Number = 2
	fieldMsgTree      protowire.Number = 3

	fieldHeaderType    protowire.Number = 1
	fieldHeaderFrom    protowire.Number = 2
	fieldHeaderTo      protowire.Number = 3
	fieldHeaderNextHop protowire.Number = 4

	fieldDiscoveryWeight protowire.Number = 1

	fieldUpdateSnapshot   protowire.Number = 1
	fieldUpdateDiff       protowire.Number = 2
	fieldUpdateCompressed protowire.Number = 3
	fieldUpdateManual     protowire.Number = 4
	fieldUpdateNext       protowire.Number = 5

	fieldTreeNode protowire.Number = 1
	fieldTreeEdge protowire.Number = 2

	fieldNodeId        protowire.Number = 1
	fieldNodeActivated protowire.Number = 2

	fieldEdgeA      protowire.Number = 1
	fieldEdgeB      protowire.Number = 2
	fieldEdgeWeight protowire.Number = 3

	fieldDiffInsertion protowire.Number = 1
	fieldDiffDeletion  protowire.Number = 2
	fieldDiffActivated protowire.Number = 3
)

func Marshal(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	b := appendMessage(nil, fieldMsgHeader, appendHeader(nil, m.Header))
	switch p := m.Payload.(type) {
	case *Discovery:
		b = appendMessage(b, fieldMsgDiscovery, appendUvarint(nil, fieldDiscoveryWeight, uint64(p.Weight)))
	case *TreeUpdate:
		b = appendMessage(b, fieldMsgTree, appendTreeUpdate(nil, p))
	}
	return b, nil
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendNodeId(b []byte, num protowire.Number, id state.NodeId) []byte {
	return appendUvarint(b, num, protowire.EncodeZigZag(int64(id)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendUvarint(b, num, protowire.EncodeBool(v))
}

func appendHeader(b []byte, h Header) []byte {
	b = appendUvarint(b, fieldHeaderType, uint64(h.Type))
	b = appendNodeId(b, fieldHeaderFrom, h.From)
	b = appendNodeId(b, fieldHeaderTo, h.To)
	return appendNodeId(b, fieldHeaderNextHop, h.NextHop)
}

func appendTreeUpdate(b []byte, u *TreeUpdate) []byte {
	if u.Snapshot != nil {
		b = appendMessage(b, fieldUpdateSnapshot, appendTree(nil, u.Snapshot))
	}
	if u.Diff != nil {
		b = appendMessage(b, fieldUpdateDiff, appendDiff(nil, u.Diff))
	}
	b = appendBool(b, fieldUpdateCompressed, u.Compressed)
	b = appendBool(b, fieldUpdateManual, u.Manual)
	return appendNodeId(b, fieldUpdateNext, u.NextActivation)
}

func appendEdge(b []byte, e state.Edge, weight uint32, withWeight bool) []byte {
	b = appendNodeId(b, fieldEdgeA, e.V1)
	b = appendNodeId(b, fieldEdgeB, e.V2)
	if withWeight {
		b = appendUvarint(b, fieldEdgeWeight, uint64(weight))
	}
	return b
}

func appendTree(b []byte, t *state.Tree) []byte {
	for _, n := range t.Nodes() {
		node := appendNodeId(nil, fieldNodeId, n)
		node = appendBool(node, fieldNodeActivated, t.IsActivated(n))
		b = appendMessage(b, fieldTreeNode, node)
	}
	for _, e := range t.Edges() {
		w, _ := t.Weight(e.V1, e.V2)
		b = appendMessage(b, fieldTreeEdge, appendEdge(nil, e, w, true))
	}
	return b
}

func appendDiff(b []byte, d *state.Diff) []byte {
	for _, e := range d.SortedInsertions() {
		b = appendMessage(b, fieldDiffInsertion, appendEdge(nil, e, d.Insertions[e], true))
	}
	for _, e := range d.SortedDeletions() {
		b = appendMessage(b, fieldDiffDeletion, appendEdge(nil, e, 0, false))
	}
	for _, n := range d.SortedActivated() {
		b = appendNodeId(b, fieldDiffActivated, n)
	}
	return b
}

// Unmarshal decodes and validates a message. Unknown fields are skipped.
func Unmarshal(b []byte) (*Message, error) {
	m := &Message{}
	hasHeader := false
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldMsgHeader:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			m.Header, err = decodeHeader(v)
			hasHeader = true
			return n, err
		case fieldMsgDiscovery:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			p, err := decodeDiscovery(v)
			m.Payload = p
			return n, err
		case fieldMsgTree:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			p, err := decodeTreeUpdate(v)
			m.Payload = p
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if !hasHeader {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// consumeFields calls fn for every field in b. fn returns the number of bytes
// it consumed, or 0 to skip the field.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeMessage(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: expected length-delimited field, got wire type %d", ErrMalformed, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeUvarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: expected varint field, got wire type %d", ErrMalformed, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeNodeId(typ protowire.Type, b []byte) (state.NodeId, int, error) {
	v, n, err := consumeUvarint(typ, b)
	if err != nil {
		return state.NoNode, 0, err
	}
	id := protowire.DecodeZigZag(v)
	if id < int64(state.NoNode) || id > math.MaxInt32 {
		return state.NoNode, 0, fmt.Errorf("%w: node id %d out of range", ErrMalformed, id)
	}
	return state.NodeId(id), n, nil
}

func consumeUint32(typ protowire.Type, b []byte) (uint32, int, error) {
	v, n, err := consumeUvarint(typ, b)
	if err != nil {
		return 0, 0, err
	}
	if v > math.MaxUint32 {
		return 0, 0, fmt.Errorf("%w: value %d overflows uint32", ErrMalformed, v)
	}
	return uint32(v), n, nil
}

func consumeBool(typ protowire.Type, b []byte) (bool, int, error) {
	v, n, err := consumeUvarint(typ, b)
	return protowire.DecodeBool(v), n, err
}

func decodeHeader(b []byte) (Header, error) {
	h := Header{From: state.NoNode, To: Broadcast, NextHop: Broadcast}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var n int
		var err error
		switch num {
		case fieldHeaderType:
			var v uint32
			v, n, err = consumeUint32(typ, b)
			if err == nil && v != uint32(NeighbourDiscovery) && v != uint32(LocalMST) {
				err = fmt.Errorf("%w: unknown message type %d", ErrMalformed, v)
			}
			h.Type = MessageType(v)
		case fieldHeaderFrom:
			h.From, n, err = consumeNodeId(typ, b)
		case fieldHeaderTo:
			h.To, n, err = consumeNodeId(typ, b)
		case fieldHeaderNextHop:
			h.NextHop, n, err = consumeNodeId(typ, b)
		}
		return n, err
	})
	return h, err
}

func decodeDiscovery(b []byte) (*Discovery, error) {
	d := &Discovery{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldDiscoveryWeight {
			return 0, nil
		}
		var n int
		var err error
		d.Weight, n, err = consumeUint32(typ, b)
		return n, err
	})
	return d, err
}

func decodeTreeUpdate(b []byte) (*TreeUpdate, error) {
	u := &TreeUpdate{NextActivation: state.NoNode}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var n int
		var err error
		switch num {
		case fieldUpdateSnapshot:
			var v []byte
			v, n, err = consumeMessage(typ, b)
			if err == nil {
				u.Snapshot, err = decodeTree(v)
			}
		case fieldUpdateDiff:
			var v []byte
			v, n, err = consumeMessage(typ, b)
			if err == nil {
				u.Diff, err = decodeDiff(v)
			}
		case fieldUpdateCompressed:
			u.Compressed, n, err = consumeBool(typ, b)
		case fieldUpdateManual:
			u.Manual, n, err = consumeBool(typ, b)
		case fieldUpdateNext:
			u.NextActivation, n, err = consumeNodeId(typ, b)
		}
		return n, err
	})
	return u, err
}

type wireEdge struct {
	edge   state.Edge
	weight uint32
}

func decodeEdge(b []byte) (wireEdge, error) {
	e := wireEdge{edge: state.Edge{V1: state.NoNode, V2: state.NoNode}}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var n int
		var err error
		switch num {
		case fieldEdgeA:
			e.edge.V1, n, err = consumeNodeId(typ, b)
		case fieldEdgeB:
			e.edge.V2, n, err = consumeNodeId(typ, b)
		case fieldEdgeWeight:
			e.weight, n, err = consumeUint32(typ, b)
		}
		return n, err
	})
	if err != nil {
		return e, err
	}
	if e.edge.V1 < 0 || e.edge.V2 < 0 || e.edge.V1 == e.edge.V2 {
		return e, fmt.Errorf("%w: invalid edge %v", ErrMalformed, e.edge)
	}
	return e, nil
}

func decodeTree(b []byte) (*state.Tree, error) {
	t := state.NewTree()
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldTreeNode:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			id := state.NoNode
			activated := false
			err = consumeFields(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				var n int
				var err error
				switch num {
				case fieldNodeId:
					id, n, err = consumeNodeId(typ, b)
				case fieldNodeActivated:
					activated, n, err = consumeBool(typ, b)
				}
				return n, err
			})
			if err != nil {
				return 0, err
			}
			if id < 0 {
				return 0, fmt.Errorf("%w: tree node without id", ErrMalformed)
			}
			t.SetActivated(id, activated)
			return n, nil
		case fieldTreeEdge:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			e, err := decodeEdge(v)
			if err != nil {
				return 0, err
			}
			t.AddEdge(e.edge.V1, e.edge.V2, e.weight)
			return n, nil
		}
		return 0, nil
	})
	return t, err
}

func decodeDiff(b []byte) (*state.Diff, error) {
	d := state.NewDiff()
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldDiffInsertion, fieldDiffDeletion:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			e, err := decodeEdge(v)
			if err != nil {
				return 0, err
			}
			if num == fieldDiffInsertion {
				d.Insert(e.edge.V1, e.edge.V2, e.weight)
			} else {
				d.Delete(e.edge.V1, e.edge.V2)
			}
			return n, nil
		case fieldDiffActivated:
			id, n, err := consumeNodeId(typ, b)
			if err != nil {
				return 0, err
			}
			if id < 0 {
				return 0, fmt.Errorf("%w: negative activated node", ErrMalformed)
			}
			d.Activate(id)
			return n, nil
		}
		return 0, nil
	})
	return d, err
}
