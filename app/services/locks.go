package services

import "sync"

// productLocks is a lazily grown arena of per-product mutexes. Every
// read-validate-write sequence on a product's quantity runs under that
// product's mutex plus a database transaction, so two concurrent operations
// on the same product can never both observe the same stale quantity.
// Operations on different products proceed in parallel.
var productLocks sync.Map // productID -> *sync.Mutex

// lockProduct acquires the mutex for a product and returns its unlock func.
func lockProduct(productID uint) func() {
	v, _ := productLocks.LoadOrStore(productID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
