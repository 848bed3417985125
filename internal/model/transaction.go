package model

import (
	"time"
)

// ============================================================================
// 金币流水类型常量
// ============================================================================

const (
	TransactionTypeRegister     = "REGISTER"      // 注册赠送初始金币
	TransactionTypeBattleFee    = "BATTLE_FEE"    // 战斗入场费（托管扣款）
	TransactionTypeBattleRefund = "BATTLE_REFUND" // 入场费返还
	TransactionTypeBattleReward = "BATTLE_REWARD" // 战斗胜利奖励
	TransactionTypeCheckIn      = "CHECK_IN"      // 每日签到奖励
	TransactionTypeWithdraw     = "WITHDRAW"      // 提现扣款
)

// ============================================================================
// 金币流水实体
// ============================================================================

// CoinTransaction 金币流水表
// 记录玩家金币的每一笔变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联来源单号（战斗号/凭证号）—— 便于对账
// 3. 记录变动前后余额 —— 便于校验余额一致性
type CoinTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	PlayerID      string    `gorm:"type:varchar(64);index;not null" json:"player_id"`            // 玩家ID
	RefNo         string    `gorm:"type:varchar(64);index" json:"ref_no"`                        // 关联单号（战斗号或提现凭证号）
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                       // 流水类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                              // 变动前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                               // 变动后余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`                             // 备注
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CoinTransaction) TableName() string {
	return "coin_transaction"
}
