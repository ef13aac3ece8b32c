package state

import (
	"reflect"
	"testing"
)

func TestSortPairsInt(t *testing.T) {
	pairs := []Pair[int, int]{
		{V1: 3, V2: 10},
		{V1: 1, V2: 20},
		{V1: 1, V2: 5},
		{V1: 2, V2: 15},
	}
	expected := []Pair[int, int]{
		{V1: 1, V2: 5},
		{V1: 1, V2: 20},
		{V1: 2, V2: 15},
		{V1: 3, V2: 10},
	}
	SortPairs(pairs)
	if !reflect.DeepEqual(pairs, expected) {
		t.Fatalf("expected %v, got %v", expected, pairs)
	}
}

func TestMakeSortedPair(t *testing.T) {
	if p := MakeSortedPair(NodeId(7), NodeId(2)); p.V1 != 2 || p.V2 != 7 {
		t.Fatalf("expected (2, 7), got %v", p)
	}
	if p := MakeSortedPair(NodeId(2), NodeId(7)); p.V1 != 2 || p.V2 != 7 {
		t.Fatalf("expected (2, 7), got %v", p)
	}
}
