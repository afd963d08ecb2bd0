package audit

import (
	"bytes"
	"encoding/gob"
)

// encodeEntry serializes an Entry to bytes using gob.
func encodeEntry(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEntry deserializes bytes back into an Entry.
func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}
