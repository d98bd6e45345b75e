package tabular

import "github.com/woainirjy/tabular/tqe"

// PartitionColumn marks a read-schema position that is filled from
// the partition schema rather than decoded from the file.
const PartitionColumn = -1

// Projection maps each read-schema position to a data-schema column
// index or to PartitionColumn.  A projection is valid only for the
// file whose data schema produced it; schema evolution means on-disk
// layouts can differ file to file, so projections are recomputed on
// every file open and never cached.
type Projection []int

// Reconcile computes the projection of read against data and
// partition.  A read column found in both resolves to the data
// schema; partition columns are constants layered over the file.
// A read column found in neither is an error.
func Reconcile(read, data, partition *Schema, caseSensitive bool) (Projection, error) {
	proj := make(Projection, 0, read.Len())
	for _, c := range read.Columns {
		if i := data.Lookup(c.Name, caseSensitive); i >= 0 {
			proj = append(proj, i)
			continue
		}
		if partition.Lookup(c.Name, caseSensitive) >= 0 {
			proj = append(proj, PartitionColumn)
			continue
		}
		return nil, tqe.E(tqe.Invalid, "column %q not found in data or partition schema", c.Name)
	}
	return proj, nil
}

// Empty reports whether no data-schema columns are projected.  This
// is a well-defined state (metadata-only or fully pruned reads), not
// an error.
func (p Projection) Empty() bool {
	for _, i := range p {
		if i != PartitionColumn {
			return false
		}
	}
	return true
}

// DataColumns returns the names of the projected on-disk columns in
// data-schema order, suitable for a format reader's restricted read.
func (p Projection) DataColumns(data *Schema) []string {
	indexes := make([]int, 0, len(p))
	for _, i := range p {
		if i != PartitionColumn {
			indexes = append(indexes, i)
		}
	}
	// Preserve data-schema order regardless of read-schema order.
	for i := 1; i < len(indexes); i++ {
		for j := i; j > 0 && indexes[j] < indexes[j-1]; j-- {
			indexes[j], indexes[j-1] = indexes[j-1], indexes[j]
		}
	}
	names := make([]string, 0, len(indexes))
	for _, i := range indexes {
		names = append(names, data.Columns[i].Name)
	}
	return names
}
