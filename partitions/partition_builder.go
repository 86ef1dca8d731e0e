package partitions

import (
	"fmt"
	"math"
	"strings"
)

// PartitionBuilder splits a horizontal domain into execution units
type PartitionBuilder struct {
	NumElements int

	// NumPartitions wins over TargetPartitionSize when both are set
	NumPartitions       int
	TargetPartitionSize int
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how positions are grouped
type PartitionStrategy int

const (
	// BlockPartition assigns consecutive positions to a unit
	BlockPartition PartitionStrategy = iota
	// RoundRobin distributes positions cyclically
	RoundRobin
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin", "round-robin", "round_robin":
		return RoundRobin, nil
	}
	return BlockPartition, fmt.Errorf("unknown partition strategy %q", s)
}

func (s *PartitionStrategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s PartitionStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NewPartitionBuilder creates a builder producing numPartitions units
func NewPartitionBuilder(numElements, numPartitions int, strategy PartitionStrategy) *PartitionBuilder {
	if numPartitions <= 0 {
		panic("number of partitions must be positive")
	}
	return &PartitionBuilder{
		NumElements:   numElements,
		NumPartitions: numPartitions,
		Strategy:      strategy,
	}
}

// BuildPartitions creates the partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumElements < 0 {
		return nil, fmt.Errorf("negative element count %d", pb.NumElements)
	}
	numPartitions := pb.calculateNumPartitions()

	eToP, err := pb.partitionElements(numPartitions)
	if err != nil {
		return nil, err
	}
	partitions := pb.createPartitions(eToP, numPartitions)

	kpartMax := calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: pb.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// calculateNumPartitions never yields empty partitions unless there is
// nothing to partition
func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := pb.NumPartitions
	if numPartitions <= 0 && pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(pb.NumElements) / float64(pb.TargetPartitionSize)))
	}
	if numPartitions > pb.NumElements {
		numPartitions = pb.NumElements
	}
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

func (pb *PartitionBuilder) partitionElements(numPartitions int) ([]int, error) {
	eToP := make([]int, pb.NumElements)

	switch pb.Strategy {
	case BlockPartition:
		// Spread the remainder over the leading partitions so sizes differ by at most one
		base, extra := pb.NumElements/numPartitions, pb.NumElements%numPartitions
		i := 0
		for p := 0; p < numPartitions; p++ {
			size := base
			if p < extra {
				size++
			}
			for n := 0; n < size; n++ {
				eToP[i] = p
				i++
			}
		}

	case RoundRobin:
		for i := 0; i < pb.NumElements; i++ {
			eToP[i] = i % numPartitions
		}

	default:
		return nil, fmt.Errorf("unsupported partition strategy %v", pb.Strategy)
	}

	return eToP, nil
}

func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Elements: make([]int, 0)}
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	return partitions
}

func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	return kpartMax
}

// PartitionStatistics computes load balance metrics
func (layout *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: layout.NumPartitions,
		MinElements:   math.MaxInt32,
		MaxElements:   0,
		AvgElements:   float64(layout.TotalElements) / float64(layout.NumPartitions),
	}

	for _, p := range layout.Partitions {
		if p.NumElements < stats.MinElements {
			stats.MinElements = p.NumElements
		}
		if p.NumElements > stats.MaxElements {
			stats.MaxElements = p.NumElements
		}
	}

	if stats.AvgElements > 0 {
		stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	}
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}
