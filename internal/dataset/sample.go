package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
)

// ErrSampleTooLarge is returned when a sample asks for more rows than the
// population holds.
var ErrSampleTooLarge = errors.New("sample larger than population")

// Split shuffles rows deterministically and cuts them into train and test
// parts at trainRatio.
func Split(rows []Row, trainRatio float64, seed int64) (train, test []Row) {
	shuffled := make([]Row, len(rows))
	copy(shuffled, rows)
	shuffleRows(shuffled, seed)

	cut := int(float64(len(shuffled)) * trainRatio)

	return shuffled[:cut], shuffled[cut:]
}

// SampleBalanced draws nPositives positive rows plus enough negatives to
// keep the positive share at pnRatio, drops negatives that describe the
// same change as a drawn positive, and shuffles the union. Rows not drawn
// are returned for test-set assembly.
func SampleBalanced(positives, negatives []Row, nPositives int, pnRatio float64, seed int64) (train, positiveLeft, negativeLeft []Row, err error) {
	samplePos, positiveLeft, err := sampleRows(positives, nPositives, seed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sample positives: %w", err)
	}

	sampleNeg, negativeLeft, err := sampleRows(negatives, negativesFor(nPositives, pnRatio), seed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sample negatives: %w", err)
	}

	train = append(dropMatching(sampleNeg, samplePos), samplePos...)
	shuffleRows(train, seed)

	return train, positiveLeft, negativeLeft, nil
}

// AssembleTestSet builds the held-out set: every positive leftover plus
// negatives drawn from the negative leftovers at the same ratio.
func AssembleTestSet(positiveLeft, negativeLeft []Row, pnRatio float64, seed int64) ([]Row, error) {
	sampleNeg, _, err := sampleRows(negativeLeft, negativesFor(len(positiveLeft), pnRatio), seed)
	if err != nil {
		return nil, fmt.Errorf("sample negatives: %w", err)
	}

	test := append(dropMatching(sampleNeg, positiveLeft), positiveLeft...)
	shuffleRows(test, seed)

	return test, nil
}

// negativesFor returns how many negatives keep nPositives at the pnRatio
// share of the total.
func negativesFor(nPositives int, pnRatio float64) int {
	return int(float64(nPositives)/pnRatio) - nPositives
}

// sampleRows draws n rows without replacement. Each call seeds its own
// generator, so the same population and seed always draw the same rows no
// matter the call order. Leftovers keep the population order.
func sampleRows(rows []Row, n int, seed int64) (sampled, leftover []Row, err error) {
	if n < 0 || n > len(rows) {
		return nil, nil, fmt.Errorf("%w: want %d of %d", ErrSampleTooLarge, n, len(rows))
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic sampling wants a seeded PRNG.
	perm := rng.Perm(len(rows))

	sampled = make([]Row, 0, n)
	for _, idx := range perm[:n] {
		sampled = append(sampled, rows[idx])
	}

	rest := perm[n:]
	slices.Sort(rest)

	leftover = make([]Row, 0, len(rest))
	for _, idx := range rest {
		leftover = append(leftover, rows[idx])
	}

	return sampled, leftover, nil
}

// dropMatching removes rows whose change already appears in keep. Matching
// compares the data columns, so the same change cannot enter a set under
// both labels.
func dropMatching(rows, keep []Row) []Row {
	seen := make(map[string]struct{}, len(keep))
	for _, row := range keep {
		seen[row.key()] = struct{}{}
	}

	out := make([]Row, 0, len(rows))

	for _, row := range rows {
		if _, ok := seen[row.key()]; ok {
			continue
		}

		out = append(out, row)
	}

	return out
}

func shuffleRows(rows []Row, seed int64) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic shuffle wants a seeded PRNG.
	rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})
}
