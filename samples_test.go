package mvpp

import (
	"bytes"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
)

func TestSampleListHash(t *testing.T) {
	list := SliceSampleList{
		{Target: anyvec32.MakeVectorData([]float32{1, 2})},
		{Target: anyvec32.MakeVectorData([]float32{1, 3})},
		{Target: anyvec32.MakeVectorData([]float32{1, 2})},
	}
	if !bytes.Equal(list.Hash(0), list.Hash(2)) {
		t.Error("equal targets should hash equally")
	}
	if bytes.Equal(list.Hash(0), list.Hash(1)) {
		t.Error("different targets should hash differently")
	}
}

func TestSampleListSlice(t *testing.T) {
	list := SliceSampleList{
		{Weight: 1},
		{Weight: 2},
		{Weight: 3},
	}
	sub := list.Slice(1, 3).(SliceSampleList)
	if sub.Len() != 2 || sub[0].Weight != 2 || sub[1].Weight != 3 {
		t.Error("incorrect slice contents")
	}
	sub[0] = &Sample{Weight: 9}
	if list[1].Weight != 2 {
		t.Error("slice should not alias the original list")
	}
}
