package testutil

// FixedSessionGenerator always returns the same session ID, so logs and
// traces from a scenario are stable across runs.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator returns a generator for id, or for
// "test-session-default" when id is empty.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionGenerator{id: id}
}

func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
