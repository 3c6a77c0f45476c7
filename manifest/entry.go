package manifest

import (
	"encoding/json"
	"fmt"
)

// Entry describes one indexed file. Basic entries carry only the digest;
// full entries add the byte size and the modification timestamp.
type Entry struct {
	Hash     string
	Size     int64
	Modified string
}

// Manifest maps file keys to their entries. Keys are slash-separated
// paths rooted at the generator's prefix.
type Manifest map[string]Entry

// full reports whether the entry carries size and timestamp data. The
// timestamp is the marker: full entries always record one, basic entries
// never do.
func (e Entry) full() bool { return e.Modified != "" }

// MarshalJSON writes basic entries as a bare digest string and full
// entries as a [hash, size, modified] triple.
func (e Entry) MarshalJSON() ([]byte, error) {
	if !e.full() {
		return json.Marshal(e.Hash)
	}
	return json.Marshal([3]any{e.Hash, e.Size, e.Modified})
}

// UnmarshalJSON accepts either entry shape.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var hash string
	if err := json.Unmarshal(data, &hash); err == nil {
		*e = Entry{Hash: hash}
		return nil
	}
	var parts []any
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("%w: want 3 elements, got %d", ErrMalformedEntry, len(parts))
	}
	hash, hashOK := parts[0].(string)
	size, sizeOK := parts[1].(float64)
	modified, modOK := parts[2].(string)
	if !hashOK || !sizeOK || !modOK {
		return fmt.Errorf("%w: %v", ErrMalformedEntry, parts)
	}
	*e = Entry{Hash: hash, Size: int64(size), Modified: modified}
	return nil
}
