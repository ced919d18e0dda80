package screener

import "github.com/quantfold/sibyl/internal/domain"

// Diversify orders and caps the candidate pool by topic so the oracle
// sees a spread of subjects instead of a volume-sorted pile dominated by
// one. Candidates are bucketed by category (preserving their
// volume-descending order), each bucket is capped at perCategoryCap, and
// buckets are drained round-robin in the fixed priority order until
// totalCap candidates are selected.
func Diversify(pool []domain.Contract, perCategoryCap, totalCap int) []domain.Contract {
	if totalCap <= 0 || len(pool) == 0 {
		return nil
	}

	buckets := make(map[Category][]domain.Contract)
	for _, c := range pool {
		cat := Classify(c)
		if perCategoryCap > 0 && len(buckets[cat]) >= perCategoryCap {
			continue
		}
		buckets[cat] = append(buckets[cat], c)
	}

	selected := make([]domain.Contract, 0, totalCap)
	for round := 0; len(selected) < totalCap; round++ {
		took := false
		for _, cat := range categoryPriority {
			bucket := buckets[cat]
			if round >= len(bucket) {
				continue
			}
			selected = append(selected, bucket[round])
			took = true
			if len(selected) >= totalCap {
				break
			}
		}
		if !took {
			break
		}
	}
	return selected
}

// Batch splits the diversified selection into fixed-size sequential
// batches, each destined for one oracle call. The number of batches per
// cycle is hard-capped; overflow candidates wait for a later cycle.
func Batch(selected []domain.Contract, batchSize, maxBatches int) [][]domain.Contract {
	if batchSize <= 0 || len(selected) == 0 {
		return nil
	}

	var batches [][]domain.Contract
	for start := 0; start < len(selected); start += batchSize {
		if maxBatches > 0 && len(batches) >= maxBatches {
			break
		}
		end := start + batchSize
		if end > len(selected) {
			end = len(selected)
		}
		batches = append(batches, selected[start:end])
	}
	return batches
}
