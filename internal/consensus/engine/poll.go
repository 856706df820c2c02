package engine

import "github.com/ruvnet/parsec/internal/consensus/block"

// Poll drains every block that has become ready to deliver to the
// caller since the last call (spec §6 poll): blocks decided while a
// DKG session gated on a prior membership change is still open are
// held back and released atomically once that session completes.
func (e *Engine) Poll() []*block.Block {
	if len(e.readyBlocks) == 0 {
		return nil
	}
	out := e.readyBlocks
	e.readyBlocks = nil
	return out
}
