// Package table describes a logical file table: where it lives, how
// its files are encoded, and which access patterns it supports.
package table

import (
	"strings"

	"github.com/woainirjy/tabular/pkg/storage"
)

// Capability is one access pattern a table supports.  Support is an
// explicit enumeration checked by direct lookup, never by inspecting
// the concrete table implementation.
type Capability uint

const (
	BatchRead Capability = 1 << iota
	BatchWrite
	MicroBatchRead
	ContinuousRead
	StreamWrite
)

func (c Capability) String() string {
	switch c {
	case BatchRead:
		return "batch-read"
	case BatchWrite:
		return "batch-write"
	case MicroBatchRead:
		return "microbatch-read"
	case ContinuousRead:
		return "continuous-read"
	case StreamWrite:
		return "stream-write"
	default:
		return "unknown"
	}
}

type CapabilitySet uint

func Capabilities(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set |= CapabilitySet(c)
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}

func (s CapabilitySet) String() string {
	var names []string
	for _, c := range []Capability{BatchRead, BatchWrite, MicroBatchRead, ContinuousRead, StreamWrite} {
		if s.Has(c) {
			names = append(names, c.String())
		}
	}
	return strings.Join(names, ",")
}

// Descriptor identifies one table.
type Descriptor struct {
	Name         string
	Location     *storage.URI
	Format       string
	Capabilities CapabilitySet
}

func (d *Descriptor) Can(c Capability) bool {
	return d.Capabilities.Has(c)
}

// NewDescriptor returns a descriptor with the capabilities every
// file-backed table has.
func NewDescriptor(name string, location *storage.URI, format string) *Descriptor {
	return &Descriptor{
		Name:         name,
		Location:     location,
		Format:       format,
		Capabilities: Capabilities(BatchRead, BatchWrite),
	}
}
