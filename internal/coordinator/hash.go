package coordinator

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/ibusnowden/MLRun/internal/rpc"
)

// payloadHash digests a batch's points order-independently: each point is
// serialized to a fixed canonical tuple of (name, step, value bits,
// client timestamp ms), the tuples are sorted, and the SHA-256 runs over
// the sorted concatenation. A client resending the same points in a
// different order therefore hashes identically, which is what makes the
// ledger's duplicate/conflict classification stable across retries that
// re-batch.
//
// The hash is computed over the points exactly as sent — before any
// validation drops or timestamp clamps — so a retry of a partially
// invalid batch still matches its original ledger entry.
func payloadHash(points []*rpc.MetricPoint) string {
	tuples := make([][]byte, len(points))
	for i, p := range points {
		buf := make([]byte, 0, len(p.Name)+1+24)
		buf = append(buf, p.Name...)
		buf = append(buf, 0)
		buf = binary.BigEndian.AppendUint64(buf, uint64(p.Step))
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(p.Value))
		buf = binary.BigEndian.AppendUint64(buf, uint64(p.TimestampMs))
		tuples[i] = buf
	}
	sort.Slice(tuples, func(i, j int) bool {
		return string(tuples[i]) < string(tuples[j])
	})

	h := sha256.New()
	for _, t := range tuples {
		h.Write(t)
	}
	return hex.EncodeToString(h.Sum(nil))
}
