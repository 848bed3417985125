package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"扣款后允许签名", ClaimStatusCreated, ClaimStatusPrepared, true},
		{"签名后允许链上确认", ClaimStatusPrepared, ClaimStatusDone, true},
		{"不能跳过签名直接确认", ClaimStatusCreated, ClaimStatusDone, false},
		{"终态不允许任何流转", ClaimStatusDone, ClaimStatusPrepared, false},
		{"不允许回退", ClaimStatusPrepared, ClaimStatusCreated, false},
		{"未知状态拒绝", "UNKNOWN", ClaimStatusDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, ClaimCanTransitionTo(tt.from, tt.to))
		})
	}
}
