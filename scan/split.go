// Package scan implements the read side of the file-table engine: it
// turns an ordered list of physical file splits into one logical
// stream of records in exactly the order and shape the consumer's
// read schema demands.
package scan

import (
	"strings"

	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/pkg/storage"
)

// Split is a contiguous byte range of one physical file plus the
// constant partition-column values derived from the file's logical
// partition location.  A split is immutable once planned and owned
// exclusively by the task that reads it; it never spans more than one
// partition-value assignment.
//
// Both shipped formats are unsplittable, so planners emit one split
// per file with Offset 0 and Length covering the whole file.  The
// range fields exist so split ownership and planning stay
// range-shaped for formats that can be cut finer.
type Split struct {
	URI       *storage.URI
	Offset    int64
	Length    int64
	Partition map[string]tabular.Value
}

// PartitionValue returns the constant value for a partition column,
// honoring the case policy of the surrounding scan.
func (s *Split) PartitionValue(name string, caseSensitive bool) (tabular.Value, bool) {
	if v, ok := s.Partition[name]; ok {
		return v, true
	}
	if caseSensitive {
		return nil, false
	}
	for k, v := range s.Partition {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}
