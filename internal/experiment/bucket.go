package experiment

import (
	"hash/fnv"

	"github.com/uplift-labs/uplift/internal/models"
)

// Bucketing is pinned to FNV-1a 32-bit so that any service implementing the
// same scheme assigns the same user to the same variant. The bucket is the
// hash of "userID:experimentID" reduced to [0, 100).
func bucketFor(userID, experimentID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(userID + ":" + experimentID))
	return float64(h.Sum32() % 100)
}

// admitted performs the independent traffic-allocation draw. The "alloc:"
// prefix decorrelates it from the variant bucket so that admission does not
// bias variant membership.
func admitted(userID, experimentID string, allocation float64) bool {
	if allocation >= 100 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte("alloc:" + userID + ":" + experimentID))
	return float64(h.Sum32()%100) < allocation
}

// chooseVariant walks variants in declaration order accumulating weight and
// picks the first whose cumulative weight exceeds the bucket. The fallback to
// the first variant guards against floating-point weight drift.
func chooseVariant(variants []models.Variant, bucket float64) string {
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if bucket < cumulative {
			return v.ID
		}
	}
	return variants[0].ID
}
