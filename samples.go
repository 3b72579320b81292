package mvpp

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// A Sample is one training example: three per-location
// feature vectors and the observed target.
type Sample struct {
	// MeanFeatures packs OutCount*MeanCount values.
	MeanFeatures anyvec.Vector

	// SpreadFeatures packs OutCount*SpreadCount values.
	SpreadFeatures anyvec.Vector

	// AuxFeatures packs OutCount*FeatureCount values.
	AuxFeatures anyvec.Vector

	// Target packs OutCount observed values.
	Target anyvec.Vector

	// Weight scales this example's loss.
	// A zero Weight means unit weight, so that the zero
	// value of Sample remains useful.
	Weight float64
}

// A SampleList is an anysgd.SampleList of Samples.
type SampleList interface {
	anysgd.SampleList

	GetSample(idx int) (*Sample, error)
}

// A SliceSampleList is a concrete SampleList with
// predetermined samples.
type SliceSampleList []*Sample

// Len returns the number of samples.
func (s SliceSampleList) Len() int {
	return len(s)
}

// Swap swaps two samples.
func (s SliceSampleList) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Slice copies a sub-slice of the list.
func (s SliceSampleList) Slice(i, j int) anysgd.SampleList {
	return append(SliceSampleList{}, s[i:j]...)
}

// GetSample returns the sample at the index.
func (s SliceSampleList) GetSample(idx int) (*Sample, error) {
	return s[idx], nil
}

// Hash hashes the sample's target, making the list usable
// with anysgd.HashSplit for deterministic validation
// splits.
func (s SliceSampleList) Hash(i int) []byte {
	h := md5.New()
	hashVector(h.Write, s[i].Target)
	res := h.Sum(nil)
	return res[:]
}

func hashVector(write func([]byte) (int, error), v anyvec.Vector) {
	var buf [8]byte
	switch data := v.Data().(type) {
	case []float32:
		for _, x := range data {
			binary.LittleEndian.PutUint32(buf[:4], uint32(int32(x*1e4)))
			write(buf[:4])
		}
	case []float64:
		for _, x := range data {
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(x*1e4)))
			write(buf[:])
		}
	default:
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Len()))
		write(buf[:])
	}
}
