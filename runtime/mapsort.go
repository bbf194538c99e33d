package runtime

import (
	"cmp"
	"sort"
)

// SortedMapKeys returns a map's keys in ascending order, the Go
// equivalent of the reference encoder's _upb_mapsorter: deterministic
// output requires encoding entries in a stable order, and the wire
// format doesn't otherwise define one.
func SortedMapKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SortedMapKeysFunc is SortedMapKeys for key types without a natural
// ordering (e.g. bool keys, compared false < true).
func SortedMapKeysFunc[K comparable, V any](m map[K]V, less func(a, b K) bool) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}

// EncodeMapField writes every entry of m as a length-delimited
// MapEntry-shaped submessage tagged fieldNumber, key-sorted for
// deterministic output. encodeEntry writes one key/value pair: field 2
// (value) first, then field 1 (key), so that with Buffer's backwards
// growth the key comes first on the wire.
// Generated code supplies encodeEntry with the concrete K, V types
// filled in, since a layout-offset table can't describe an arbitrary
// map's key/value shape generically.
func EncodeMapField[K cmp.Ordered, V any](buf *Buffer, fieldNumber int32, m map[K]V, encodeEntry func(buf *Buffer, k K, v V)) {
	keys := SortedMapKeys(m)
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		mark := buf.Mark()
		encodeEntry(buf, k, m[k])
		buf.WriteVarint(uint64(buf.LenSince(mark)))
		buf.WriteTag(fieldNumber, WireDelimited)
	}
}
