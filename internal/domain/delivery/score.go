package delivery

import "github.com/vestigas/delivery-ingest/internal/domain/model"

// Score computes the delivery quality score: 1.0 base, +2.0 if delivered,
// +2.0 if a proof of delivery was signed. The clamp keeps the 1.0-5.0 bound
// as an invariant if the formula ever changes.
func Score(delivered, signed bool) float64 {
	score := model.MinScore
	if delivered {
		score += 2.0
	}
	if signed {
		score += 2.0
	}
	if score > model.MaxScore {
		score = model.MaxScore
	}
	return score
}
