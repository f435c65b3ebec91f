package subsidy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubsidy_Reductions(t *testing.T) {
	s := Mainnet(0)
	require.NoError(t, s.Validate())

	assert.Equal(t, int64(3119582664), s.Subsidy(1000))
	assert.Equal(t, int64(3119582664), s.Subsidy(6143))
	assert.Equal(t, int64(3119582664*100/101), s.Subsidy(6144))

	second := int64(3119582664) * 100 / 101 * 100 / 101
	assert.Equal(t, second, s.Subsidy(2*6144))
	assert.Equal(t, int64(0), s.Subsidy(-1))
}

func TestSplit_ChangesAtHeight(t *testing.T) {
	s := Mainnet(657280)

	before := s.Split(657279)
	assert.Equal(t, before.Total*6/10, before.Work)
	assert.Equal(t, before.Total*3/10, before.Stake)
	assert.Equal(t, before.Total/10, before.Treasury)

	after := s.Split(657280)
	assert.Equal(t, after.Total/10, after.Work)
	assert.Equal(t, after.Total*8/10, after.Stake)

	w, st, tr := s.Shares(700000)
	assert.InDelta(t, 0.1, w, 1e-12)
	assert.InDelta(t, 0.8, st, 1e-12)
	assert.InDelta(t, 0.1, tr, 1e-12)
}

func TestVoteReward(t *testing.T) {
	s := Mainnet(0)
	assert.Equal(t, s.Split(5000).Stake/5, s.VoteReward(5000))
	assert.InDelta(t, 31.19582664, Coins(s.Subsidy(0)), 1e-9)
}

func TestValidate_BadSplit(t *testing.T) {
	s := Mainnet(0)
	s.Eras[1].Stake = 9
	assert.Error(t, s.Validate())
}

func TestCurve_SupplyGrowsAndS2FRises(t *testing.T) {
	s := Mainnet(0)
	pts := s.Curve(20000, 288)
	require.NotEmpty(t, pts)
	assert.Equal(t, int64(288), pts[0].Height)
	assert.True(t, pts[0].Supply > 1_680_000)

	for i := 1; i < len(pts); i++ {
		assert.Greater(t, pts[i].Supply, pts[i-1].Supply)
	}
	assert.Greater(t, pts[len(pts)-1].S2F, pts[0].S2F)
	assert.Equal(t, Genesis.Add(288*5*time.Minute), pts[0].Date)
}
