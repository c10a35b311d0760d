package brackets

import "context"

type GenerateBracketParams struct {
	// ItemIDs are seeded in order; earlier items receive the byes.
	ItemIDs []int
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)
}
