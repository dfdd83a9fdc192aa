package testutil

// FixedIDGenerator returns the same evaluator ID every time.
//
// Evaluator log records carry the ID, so a fixed ID keeps scenario logs
// identical across runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
//
// If id is empty, Generate() returns "test-evaluator-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-evaluator-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements evaluator.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
