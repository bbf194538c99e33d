package ir

import (
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// submsgDedup implements component B: the per-message deduplicated,
// dense table of distinct submessage layouts a message's fields refer
// to, sorted by the referenced message's full name so the index
// assignment is stable across generator runs regardless of field
// declaration order.
//
// Usage: call register for every message-kind field while walking a
// message's fields, call finish once after the walk, then indexOf
// returns each submessage's final dense index.
type submsgDedup struct {
	byName  map[protoreflect.FullName]*Message
	ordered []*Message
	index   map[*Message]int
}

func newSubmsgDedup() *submsgDedup {
	return &submsgDedup{byName: make(map[protoreflect.FullName]*Message)}
}

func (d *submsgDedup) register(m *Message) {
	name := m.Desc.Desc.FullName()
	if _, ok := d.byName[name]; ok {
		return
	}
	d.byName[name] = m
	d.ordered = append(d.ordered, m)
}

// finish sorts the registered submessages by full name and assigns dense
// indices 0..N-1 to match. Must run once, after every register call for
// a given owning message.
func (d *submsgDedup) finish() {
	sort.Slice(d.ordered, func(i, j int) bool {
		return d.ordered[i].Desc.Desc.FullName() < d.ordered[j].Desc.Desc.FullName()
	})
	d.index = make(map[*Message]int, len(d.ordered))
	for i, m := range d.ordered {
		d.index[m] = i
	}
}

// indexOf returns m's dense index. finish must have run first.
func (d *submsgDedup) indexOf(m *Message) int {
	return d.index[m]
}
