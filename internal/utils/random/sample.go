package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Sample returns k distinct elements chosen uniformly at random, in the
// order they were drawn. It runs a partial Fisher-Yates shuffle over a copy,
// so the input slice is left untouched. k larger than len(items) is clamped.
func Sample[T any](items []T, k int) ([]T, error) {
	n := len(items)
	if k > n {
		k = n
	}
	if k <= 0 {
		return []T{}, nil
	}
	pool := make([]T, n)
	copy(pool, items)
	for i := 0; i < k; i++ {
		j, err := intn(n - i)
		if err != nil {
			return nil, err
		}
		j += i
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}

func intn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}
