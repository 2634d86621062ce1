package offer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/credsim/storage/types"
)

// newScoredOffer creates a bare offer with the given score and identity
func newScoredOffer(score float64, institutionID int64, code string, seq int) *types.Offer {
	return &types.Offer{
		Score:         score,
		InstitutionID: institutionID,
		ModalityCode:  types.StringCode(code),
		Sequence:      seq,
	}
}

func TestRank(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		ranked := Rank(nil, TopK)

		require.NotNil(t, ranked)
		assert.Empty(t, ranked)
	})

	t.Run("non-positive k", func(t *testing.T) {
		t.Parallel()

		ranked := Rank([]*types.Offer{newScoredOffer(1, 1, "1", 0)}, 0)

		assert.Empty(t, ranked)
	})

	t.Run("fewer offers than k", func(t *testing.T) {
		t.Parallel()

		offers := []*types.Offer{
			newScoredOffer(0.5, 1, "1", 0),
			newScoredOffer(0.2, 2, "1", 1),
		}

		ranked := Rank(offers, TopK)
		require.Len(t, ranked, 2)

		assert.Same(t, offers[1], ranked[0])
		assert.Same(t, offers[0], ranked[1])
	})

	t.Run("ties ordered by identity", func(t *testing.T) {
		t.Parallel()

		var (
			a = newScoredOffer(0.5, 1, "1", 0)
			b = newScoredOffer(0.2, 3, "1", 1)
			c = newScoredOffer(0.9, 1, "2", 2)
			d = newScoredOffer(0.2, 2, "7", 3)

			offers = []*types.Offer{a, b, c, d}
		)

		ranked := Rank(offers, TopK)
		require.Len(t, ranked, TopK)

		assert.Equal(t, []*types.Offer{d, b, a}, ranked)

		// The input is left untouched
		assert.Equal(t, []*types.Offer{a, b, c, d}, offers)
	})

	t.Run("ties on identity fall back to arrival", func(t *testing.T) {
		t.Parallel()

		var (
			first  = newScoredOffer(1, 1, "3", 0)
			second = newScoredOffer(1, 1, "3", 1)
		)

		ranked := Rank([]*types.Offer{second, first}, TopK)
		require.Len(t, ranked, 2)

		assert.Same(t, first, ranked[0])
		assert.Same(t, second, ranked[1])
	})

	t.Run("result is sorted by score", func(t *testing.T) {
		t.Parallel()

		scores := []float64{4.2, 0.1, 3.3, 9.9, 0.7, 2.5, 0.1}
		offers := make([]*types.Offer, 0, len(scores))

		for i, score := range scores {
			offers = append(offers, newScoredOffer(score, int64(i), "1", i))
		}

		ranked := Rank(offers, TopK)
		require.Len(t, ranked, TopK)

		for i := 1; i < len(ranked); i++ {
			assert.LessOrEqual(t, ranked[i-1].Score, ranked[i].Score)
		}

		assert.Equal(t, 0.1, ranked[0].Score)
		assert.Equal(t, 0.1, ranked[1].Score)
		assert.Equal(t, 0.7, ranked[2].Score)
	})
}
