package crdt

import "github.com/iudanet/scenesync/internal/models"

// Comparator orders two versions of the same (entity, component) pair.
// A positive result means a wins over b.
type Comparator func(a, b models.Version) int

// HigherNetworkIDWins is the default tie-break: on equal timestamps the
// message with the numerically greater network id wins.
func HigherNetworkIDWins(a, b models.Version) int {
	return a.Compare(b)
}

// LowerNetworkIDWins keeps timestamp ordering but lets the smaller network id
// win ties.
func LowerNetworkIDWins(a, b models.Version) int {
	if a.Timestamp != b.Timestamp {
		return a.Compare(b)
	}
	return b.Compare(a)
}

// DefaultComparator is used by stores created without WithComparator.
var DefaultComparator Comparator = HigherNetworkIDWins
