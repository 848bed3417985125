package model

import (
	"time"
)

const (
	BattleResultWin  = "win"
	BattleResultLose = "lose"
	BattleResultDraw = "draw"
)

// BattleRecord 战斗记录表
// 战斗会话本身不独立存储状态（开战→结算的影响直接折算进玩家账户），
// 本表只留结算快照，用于客户端战绩页和收益对账
type BattleRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BattleNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"battle_no"`
	PlayerID      string    `gorm:"type:varchar(64);index;not null" json:"player_id"`
	MonsterID     int       `gorm:"not null" json:"monster_id"`
	Result        string    `gorm:"type:varchar(10);not null" json:"result"` // win / lose / draw
	EntryFee      int64     `gorm:"not null" json:"entry_fee"`
	FeeRefund     int64     `gorm:"not null" json:"fee_refund"`
	RewardCoin    int64     `gorm:"not null" json:"reward_coin"`
	RewardExp     int64     `gorm:"not null" json:"reward_exp"`
	HitDailyLimit bool      `gorm:"not null;default:false" json:"hit_daily_limit"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (BattleRecord) TableName() string {
	return "battle_record"
}
