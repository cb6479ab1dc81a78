package importer

import "strings"

// ExistingRecord is the natural key of a record already on the backend.
type ExistingRecord struct {
	ID  int
	Key string
}

// IsDuplicate reports whether candidate matches the key of any existing record
// other than excludeID. Pass 0 for creates.
func IsDuplicate(existing []ExistingRecord, candidate string, excludeID int) bool {
	key := normalizeKey(candidate)
	if key == "" {
		return false
	}
	for _, record := range existing {
		if excludeID != 0 && record.ID == excludeID {
			continue
		}
		if normalizeKey(record.Key) == key {
			return true
		}
	}
	return false
}

// KeyIndex is the run's view of existing natural keys. It starts from the
// backend collection and grows as rows are created so later rows of the same
// file collide with earlier ones.
type KeyIndex struct {
	records []ExistingRecord
}

func NewKeyIndex(existing []ExistingRecord) *KeyIndex {
	index := &KeyIndex{records: make([]ExistingRecord, 0, len(existing))}
	for _, record := range existing {
		index.Add(record.ID, record.Key)
	}
	return index
}

// Contains reports whether key would be a duplicate of a known record.
func (k *KeyIndex) Contains(key string) bool {
	return IsDuplicate(k.records, key, 0)
}

// Add stores key already normalized so lookups stay cheap.
func (k *KeyIndex) Add(id int, key string) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return
	}
	k.records = append(k.records, ExistingRecord{ID: id, Key: normalized})
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
