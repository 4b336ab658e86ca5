package testutil

// FixedRunIDGenerator returns the same run ID every time, so every run in a
// test logs and snapshots identically.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// DefaultRunID is used when a scenario does not name a run ID.
const DefaultRunID = "test-run-default"

// NewFixedRunIDGenerator returns a generator for id. An empty id yields
// DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate implements record.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
