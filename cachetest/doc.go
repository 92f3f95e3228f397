// Package cachetest provides reusable store contract tests for pagecache.Store implementations.
//
// Custom drivers passed to pagecache.WithStore can use this package from
// their own tests without importing root test helpers.
//
// Example pattern:
//
//	func TestMyStoreContract(t *testing.T) {
//		store := mystore.New(mystore.Config{Addr: addr})
//		t.Cleanup(func() { _ = store.Close() })
//
//		// Namespace keys per test and tune TTL waits for backend semantics as needed.
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			CaseName: t.Name(),
//			TTL:      time.Second,
//			TTLWait:  1500 * time.Millisecond,
//		})
//	}
package cachetest
