package store

import "strings"

// Key layout:
//
//	<prefix><id>                        entity document (JSON)
//	<prefix>idx:<name>:<value>:<id>     secondary index entry (empty value)
const indexMarker = "idx:"

func entityKey(prefix, id string) []byte {
	return []byte(prefix + id)
}

// indexPrefix is the scan prefix for every entry of one index value.
func indexPrefix(prefix, name, value string) []byte {
	var b strings.Builder
	b.Grow(len(prefix) + len(indexMarker) + len(name) + len(value) + 2)
	b.WriteString(prefix)
	b.WriteString(indexMarker)
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte(':')
	return []byte(b.String())
}

func indexKey(prefix, name, value, id string) []byte {
	return append(indexPrefix(prefix, name, value), id...)
}

// idFromIndexKey extracts the entity id from an index key built with scanPrefix.
func idFromIndexKey(key, scanPrefix []byte) string {
	return string(key[len(scanPrefix):])
}
