package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNextIDUnique(t *testing.T) {
	const n = 5000
	var mu sync.Mutex
	seen := make(map[int64]bool, n)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n/4; i++ {
				id := NextID()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestBusinessNumberPrefixes(t *testing.T) {
	if no := GenerateTransactionNo(); !strings.HasPrefix(no, "TXN") {
		t.Errorf("transaction no %q missing TXN prefix", no)
	}
	if no := GenerateEntryNo(); !strings.HasPrefix(no, "LED") {
		t.Errorf("entry no %q missing LED prefix", no)
	}
	if no := GenerateWithdrawalNo(); !strings.HasPrefix(no, "WDR") {
		t.Errorf("withdrawal no %q missing WDR prefix", no)
	}
}
