package bba

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func noCoin(int) (bool, bool) { return false, false }

func TestAdvance_UnanimousForcedTrueDecidesImmediately(t *testing.T) {
	mv := Initial(true)
	others := []bool{true, true, true}
	next := Advance(mv, others, others, noCoin, 4)

	require := assert.New(t)
	require.NotNil(next.Decision)
	require.True(*next.Decision)
}

func TestAdvance_NoAgreementStaysAtSameStep(t *testing.T) {
	mv := Initial(true)
	next := Advance(mv, []bool{false}, nil, noCoin, 4)

	assert.Nil(t, next.Decision)
	assert.Equal(t, ForcedTrue, next.Step)
	assert.Nil(t, next.BinValues)
}

func TestAdvance_BinaryBinValuesWaitsOnCoin(t *testing.T) {
	mv := MetaVote{Round: 0, Step: GenuineFlip, BinValues: map[bool]bool{true: true, false: true}}
	waiting := Advance(mv, nil, nil, noCoin, 4)
	assert.Nil(t, waiting.Aux)
	assert.Equal(t, GenuineFlip, waiting.Step)

	resolved := Advance(mv, nil, nil, func(int) (bool, bool) { return true, true }, 4)
	assert.Equal(t, 1, resolved.Round)
	assert.Equal(t, ForcedTrue, resolved.Step)
	assert.Equal(t, map[bool]bool{true: true}, resolved.Estimates)
}

func TestAdvance_SingletonBinValuesAdvancesRoundWithoutCoin(t *testing.T) {
	mv := MetaVote{Round: 2, Step: GenuineFlip, BinValues: map[bool]bool{false: true}}
	next := Advance(mv, nil, nil, noCoin, 4)

	assert.Equal(t, 3, next.Round)
	assert.Equal(t, ForcedTrue, next.Step)
	assert.Equal(t, map[bool]bool{false: true}, next.Estimates)
}

func TestAdvance_DecidedVoteIsTerminal(t *testing.T) {
	decided := true
	mv := MetaVote{Round: 5, Step: ForcedTrue, Decision: &decided}
	next := Advance(mv, []bool{false, false, false}, nil, noCoin, 4)
	assert.Equal(t, mv, next)
}
