package brackets

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sort"
)

// BracketMatch is one node of a generated elimination tree. Slots hold either
// an item seeded directly or the UID of the match whose winner fills it.
type BracketMatch struct {
	UID          string
	Round        int
	OrderInRound int

	Participant1ID *int
	Participant2ID *int

	SourceMatch1UID *string
	SourceMatch2UID *string

	// A bye is never played, Participant1ID moves straight to the next round.
	IsBye bool
}

type node struct {
	participantID  *int
	sourceMatchUID *string
	isBye          bool
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	n := len(params.ItemIDs)
	if n < 2 {
		return nil, errors.New("not enough items to generate a single elimination bracket (minimum 2)")
	}

	numRounds := bits.Len(uint(n - 1))
	sizeOfFullBracket := 1 << numRounds
	numByes := sizeOfFullBracket - n

	// Каждый bye ставится в пару с реальным участником, двух bye в одной паре не бывает.
	currentRoundNodes := make([]*node, 0, sizeOfFullBracket)
	next := 0
	for pair := 0; pair < sizeOfFullBracket/2; pair++ {
		id := params.ItemIDs[next]
		next++
		currentRoundNodes = append(currentRoundNodes, &node{participantID: &id})
		if pair < numByes {
			currentRoundNodes = append(currentRoundNodes, &node{isBye: true})
			continue
		}
		id2 := params.ItemIDs[next]
		next++
		currentRoundNodes = append(currentRoundNodes, &node{participantID: &id2})
	}

	allGeneratedMatches := make([]*BracketMatch, 0, sizeOfFullBracket-1)

	for r := 1; r <= numRounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nextRoundNodes := make([]*node, 0, len(currentRoundNodes)/2)

		for i := 0; i < len(currentRoundNodes); i += 2 {
			node1, node2 := currentRoundNodes[i], currentRoundNodes[i+1]
			order := i/2 + 1
			uid := fmt.Sprintf("R%dM%d", r, order)

			bm := &BracketMatch{UID: uid, Round: r, OrderInRound: order}

			switch {
			case node1.participantID != nil && node2.isBye:
				bm.IsBye = true
				bm.Participant1ID = node1.participantID
				nextRoundNodes = append(nextRoundNodes, &node{participantID: node1.participantID})
			case node2.participantID != nil && node1.isBye:
				bm.IsBye = true
				bm.Participant1ID = node2.participantID
				nextRoundNodes = append(nextRoundNodes, &node{participantID: node2.participantID})
			case node1.isBye || node2.isBye:
				return nil, fmt.Errorf("unexpected bye pairing in round %d, match %d", r, order)
			default:
				bm.Participant1ID = node1.participantID
				bm.SourceMatch1UID = node1.sourceMatchUID
				bm.Participant2ID = node2.participantID
				bm.SourceMatch2UID = node2.sourceMatchUID
				nextRoundNodes = append(nextRoundNodes, &node{sourceMatchUID: &uid})
			}

			allGeneratedMatches = append(allGeneratedMatches, bm)
		}
		currentRoundNodes = nextRoundNodes
	}

	if len(currentRoundNodes) != 1 {
		return nil, fmt.Errorf("internal error: expected a single final slot, got %d", len(currentRoundNodes))
	}

	sort.Slice(allGeneratedMatches, func(i, j int) bool {
		if allGeneratedMatches[i].Round != allGeneratedMatches[j].Round {
			return allGeneratedMatches[i].Round < allGeneratedMatches[j].Round
		}
		return allGeneratedMatches[i].OrderInRound < allGeneratedMatches[j].OrderInRound
	})

	return allGeneratedMatches, nil
}
