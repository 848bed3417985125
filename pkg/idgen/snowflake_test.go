package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIDUnique(t *testing.T) {
	Init(1)

	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				ids = append(ids, NextID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				assert.False(t, seen[id], "ID 重复: %d", id)
				seen[id] = true
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNextNonceMonotonic(t *testing.T) {
	prev := NextNonce()
	for i := 0; i < 1000; i++ {
		next := NextNonce()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestGenerateNos(t *testing.T) {
	battle := GenerateBattleNo()
	txn := GenerateTransactionNo()
	claim := GenerateClaimNo()

	assert.True(t, strings.HasPrefix(battle, "BTL"))
	assert.True(t, strings.HasPrefix(txn, "TXN"))
	assert.True(t, strings.HasPrefix(claim, "WDC"))

	// 前缀(3) + 时间戳(14) + 序列(8)
	assert.Len(t, battle, 25)
	assert.Len(t, txn, 25)
	assert.Len(t, claim, 25)

	assert.NotEqual(t, GenerateClaimNo(), GenerateClaimNo())
}
