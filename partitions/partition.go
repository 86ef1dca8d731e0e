package partitions

import (
	"fmt"
)

// Partition is a set of horizontal positions that execute together as one
// unit. Positions are indices into the list the layout was built from.
type Partition struct {
	ID int

	Elements    []int // Position indices in this partition, ascending
	NumElements int   // Actual number of positions
	MaxElements int   // Padded size shared by every partition of a layout
}

// PartitionLayout is the decomposition of a horizontal domain into units
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumElements) across all partitions
	TotalElements int
	NumPartitions int

	// Position n belongs to partition EToP[n]
	EToP []int
}

// GetPartition returns the partition containing position n, or -1
func (pl *PartitionLayout) GetPartition(n int) int {
	if n < 0 || n >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[n]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax := 0
	total := 0
	for _, p := range pl.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d elements",
				p.ID, p.NumElements, len(p.Elements))
		}
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		for _, e := range p.Elements {
			if pl.GetPartition(e) != p.ID {
				return fmt.Errorf("partition %d holds element %d mapped to partition %d",
					p.ID, e, pl.GetPartition(e))
			}
		}
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, layout has %d", total, pl.TotalElements)
	}
	return nil
}

// Flatten returns the partitions as an offsets array of length
// NumPartitions+1 and the concatenated element lists, the form kernels index
func (pl *PartitionLayout) Flatten() (offsets, elements []int64) {
	offsets = make([]int64, pl.NumPartitions+1)
	elements = make([]int64, 0, pl.TotalElements)
	for i, p := range pl.Partitions {
		for _, e := range p.Elements {
			elements = append(elements, int64(e))
		}
		offsets[i+1] = int64(len(elements))
	}
	return offsets, elements
}
