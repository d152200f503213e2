// Package store provides the in-memory per-merchant view of one
// transaction batch that all feature extractors consume.
package store

import (
	"fmt"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Store groups one immutable batch of transactions by merchant id, each
// merchant's slice ordered by timestamp ascending. It is built once per
// batch and never mutated afterwards, so concurrent readers need no
// locking.
type Store struct {
	byMerchant map[string][]*domain.Transaction
	merchants  []string
	total      int
}

// New builds a store from an ordered or unordered batch.
// Timestamp ties are broken by transaction id so two runs over the same
// batch always see the same order.
func New(txs []*domain.Transaction) (*Store, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: no transactions in batch", domain.ErrEmptyInput)
	}

	byMerchant := make(map[string][]*domain.Transaction)
	for _, tx := range txs {
		if tx.MerchantID == "" {
			return nil, fmt.Errorf("%w: transaction %s has no merchant id", domain.ErrEmptyInput, tx.ID)
		}
		byMerchant[tx.MerchantID] = append(byMerchant[tx.MerchantID], tx)
	}

	merchants := make([]string, 0, len(byMerchant))
	for m, group := range byMerchant {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Timestamp.Equal(group[j].Timestamp) {
				return group[i].ID < group[j].ID
			}
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
		merchants = append(merchants, m)
	}
	sort.Strings(merchants)

	return &Store{
		byMerchant: byMerchant,
		merchants:  merchants,
		total:      len(txs),
	}, nil
}

// MerchantIDs returns all merchant ids in sorted order.
func (s *Store) MerchantIDs() []string {
	return s.merchants
}

// Transactions returns the merchant's transactions ordered by timestamp.
// The returned slice must not be modified.
func (s *Store) Transactions(merchantID string) ([]*domain.Transaction, error) {
	group, ok := s.byMerchant[merchantID]
	if !ok {
		return nil, fmt.Errorf("%w: merchant %s not in batch", domain.ErrEmptyInput, merchantID)
	}
	return group, nil
}

// Len returns the total number of transactions in the batch.
func (s *Store) Len() int {
	return s.total
}

// MerchantCount returns the number of distinct merchants in the batch.
func (s *Store) MerchantCount() int {
	return len(s.merchants)
}

// Each calls fn for every merchant in sorted order with its ordered
// transaction slice.
func (s *Store) Each(fn func(merchantID string, txs []*domain.Transaction)) {
	for _, m := range s.merchants {
		fn(m, s.byMerchant[m])
	}
}
