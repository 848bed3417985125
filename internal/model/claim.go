package model

import (
	"time"
)

const (
	// ClaimStatusCreated 扣款已落库，但签名尚未生成（或生成失败待补签）
	ClaimStatusCreated = "CREATED"
	// ClaimStatusPrepared 签名已生成，等待用户上链领取
	ClaimStatusPrepared = "PREPARED"
	// ClaimStatusDone 链上交易已确认，凭证生命周期结束
	ClaimStatusDone = "DONE"
)

// ValidClaimTransitions 提现凭证状态机
//
// 【关键点】CREATED 是扣款与签名之间的中间态：
// 扣款事务提交成功后才允许调用签名器，如果签名失败，
// 凭证停留在 CREATED，由补签任务用同一个 nonce 重新签名，
// 绝不会因为签名重试而二次扣款
var ValidClaimTransitions = map[string][]string{
	ClaimStatusCreated:  {ClaimStatusPrepared},
	ClaimStatusPrepared: {ClaimStatusDone},
}

// ClaimCanTransitionTo 校验凭证状态流转是否合法
func ClaimCanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidClaimTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// WithdrawClaim 提现凭证表
// 记录每一次"链下扣金币 → 链上领代币"的授权凭证
//
// 不变量：凭证对应的 CoinAmount 必须在凭证创建的同一个数据库事务内
// 从玩家余额中扣除，扣款和凭证永远不会只存在其一
type WithdrawClaim struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClaimNo       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"claim_no"` // 凭证号（全局唯一）
	PlayerID      string     `gorm:"type:varchar(64);index;not null" json:"player_id"`      // 玩家ID
	WalletAddress string     `gorm:"type:varchar(42);not null" json:"wallet_address"`       // 提现目标钱包
	CoinAmount    int64      `gorm:"not null" json:"coin_amount"`                           // 扣除的金币数
	TokenAmount   string     `gorm:"type:varchar(78);not null" json:"token_amount"`         // 兑换的代币数（最小单位，十进制字符串，uint256 范围）
	Nonce         int64      `gorm:"uniqueIndex;not null" json:"nonce"`                     // 防重放随机数（雪花ID，单调递增且全局唯一）
	Signature     string     `gorm:"type:varchar(132)" json:"signature"`                    // 服务端签名（65字节 hex），CREATED 状态下为空
	VaultAddress  string     `gorm:"type:varchar(42);not null" json:"vault_address"`        // 金库合约地址
	Status        string     `gorm:"type:varchar(20);index;not null" json:"status"`
	TxHash        *string    `gorm:"type:varchar(66)" json:"tx_hash"`                       // 链上领取交易哈希（DONE 时填写）
	ConfirmedAt   *time.Time `json:"confirmed_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawClaim) TableName() string {
	return "withdraw_claim"
}
