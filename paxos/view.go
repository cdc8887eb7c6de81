package paxos

import "slices"

// ViewPrimary returns the peer designated as primary for a view, or "" when
// the view has no peers.
func ViewPrimary(viewID int64, peers []string) string {
	if len(peers) == 0 {
		return ""
	}
	sorted := slices.Sorted(slices.Values(peers))
	n := int64(len(sorted))
	return sorted[((viewID%n)+n)%n]
}
