package audit

import "encoding/binary"

// Bucket name constants for bbolt storage.
var (
	bucketMeta    = []byte("meta")
	bucketEntries = []byte("entries")
)

// Meta key constants.
var keyVersion = []byte("version")

// schemaVersion is written to the meta bucket on first open.
const schemaVersion = 1

// seqToKey converts a bucket sequence number to an 8-byte big-endian key so
// that cursor order is append order.
func seqToKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

// keyToSeq converts an 8-byte big-endian key back to a sequence number.
func keyToSeq(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
