package domain

import "sort"

// ManifestItem is one fetchable advisory file.
type ManifestItem struct {
	Name         string
	Location     string
	SubPartition string
}

// Manifest enumerates the advisory files of one partition, grouped by
// sub-partition. It lives for a single ingestion pass.
type Manifest struct {
	Partition     string
	SubPartitions map[string][]ManifestItem
}

// NewManifest returns an empty manifest for a partition.
func NewManifest(partition string) *Manifest {
	return &Manifest{
		Partition:     partition,
		SubPartitions: make(map[string][]ManifestItem),
	}
}

// Add appends an item under its sub-partition.
func (m *Manifest) Add(item ManifestItem) {
	m.SubPartitions[item.SubPartition] = append(m.SubPartitions[item.SubPartition], item)
}

// Items flattens the manifest. Sub-partitions are visited in name order and
// items keep listing order within each.
func (m *Manifest) Items() []ManifestItem {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.SubPartitions))
	for k := range m.SubPartitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []ManifestItem
	for _, k := range keys {
		out = append(out, m.SubPartitions[k]...)
	}
	return out
}

// Len returns the total item count.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, items := range m.SubPartitions {
		n += len(items)
	}
	return n
}

// Batch is the unit handed to a sink: every record extracted for one
// partition during one run.
type Batch struct {
	Partition string
	RunID     string
	Records   []Record
}

// MergeStats summarises one reconciliation.
type MergeStats struct {
	Staged   int
	Unique   int
	Inserted int
	Updated  int
	Skipped  int
}

// Add accumulates another set of stats.
func (s *MergeStats) Add(o MergeStats) {
	s.Staged += o.Staged
	s.Unique += o.Unique
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Skipped += o.Skipped
}
