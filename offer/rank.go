package offer

import (
	"github.com/sig-0/iq"

	"github.com/sig-0/credsim/storage/types"
)

// TopK is the number of offers returned to the caller
const TopK = 3

// rankedOffer orders offers for the ranking queue
type rankedOffer struct {
	offer *types.Offer
}

// Less sorts offers by score (lowest first). Equal scores are ordered
// by identity (institution, then modality), then by arrival
func (a rankedOffer) Less(b rankedOffer) bool {
	x, y := a.offer, b.offer

	if x.Score != y.Score {
		return x.Score < y.Score
	}

	if x.InstitutionID != y.InstitutionID {
		return x.InstitutionID < y.InstitutionID
	}

	if xc, yc := x.ModalityCode.String(), y.ModalityCode.String(); xc != yc {
		return xc < yc
	}

	return x.Sequence < y.Sequence
}

// Rank returns the k best offers, best first.
// The input slice is not modified
func Rank(offers []*types.Offer, k int) []*types.Offer {
	if k <= 0 || len(offers) == 0 {
		return []*types.Offer{}
	}

	q := iq.NewQueue[rankedOffer]()

	for _, o := range offers {
		q.Push(rankedOffer{offer: o})
	}

	out := make([]*types.Offer, 0, min(k, len(offers)))

	for len(out) < k && q.Len() > 0 {
		out = append(out, q.PopFront().offer)
	}

	return out
}
