package paxos

import (
	"cmp"
	"fmt"
	"strings"
)

// Ballot is a claim to leadership. Ballots are ordered by view, then round,
// and ties between leaders are broken by comparing their addresses.
type Ballot struct {
	View   int64  `json:"view"`
	Round  int64  `json:"round"`
	Leader string `json:"leader"`
}

// NoBallot is lower than any ballot a leader can produce.
var NoBallot = Ballot{View: -1, Round: -1}

// Compare returns -1, 0 or +1 depending on whether b is older than, equal to
// or fresher than other.
func (b Ballot) Compare(other Ballot) int {
	return cmp.Or(
		cmp.Compare(b.View, other.View),
		cmp.Compare(b.Round, other.Round),
		strings.Compare(b.Leader, other.Leader),
	)
}

// Less reports whether b is older than other
func (b Ballot) Less(other Ballot) bool {
	return b.Compare(other) < 0
}

func (b Ballot) String() string {
	return fmt.Sprintf("(%d, %d, %s)", b.View, b.Round, b.Leader)
}
