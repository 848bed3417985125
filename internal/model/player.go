package model

import (
	"time"
)

// Player 玩家账户表
// 记录玩家的金币余额和成长数据，是整个游戏经济系统的核心数据
//
// 【重要】服务端是 coin/level/exp 的唯一数据源，
// 任何客户端上报的余额、等级字段都不可信，只能通过四个经济操作变更
type Player struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"player_id"` // 玩家ID，游戏客户端传入
	Name            string     `gorm:"type:varchar(64)" json:"name"`                           // 玩家昵称
	WalletAddress   string     `gorm:"type:varchar(42);index" json:"wallet_address"`           // 绑定的链上钱包地址（绑定后不可变）
	Coin            int64      `gorm:"not null;default:0" json:"coin"`                         // 金币余额（不变量：永不为负）
	Level           int        `gorm:"not null;default:1" json:"level"`                        // 等级（单调不减）
	Exp             int64      `gorm:"not null;default:0" json:"exp"`                          // 经验值（累计制，升级不清零）
	MaxHP           int        `gorm:"not null;default:20" json:"max_hp"`                      // 最大生命值 = 20 + (level-1)*2
	InBattle        bool       `gorm:"not null;default:false" json:"in_battle"`                // 是否有托管中的战斗（入场费已扣待结算）
	BattleMonsterID int        `gorm:"not null;default:0" json:"battle_monster_id"`            // 托管战斗的怪物ID
	EarnedToday     int64      `gorm:"not null;default:0" json:"earned_today"`                 // 今日已获净收益（跨日重置）
	LastRewardDate  string     `gorm:"type:varchar(10)" json:"last_reward_date"`               // 收益日戳（UTC，YYYY-MM-DD）
	CheckInStreak   int        `gorm:"not null;default:0" json:"check_in_streak"`              // 连续签到天数
	LastCheckIn     string     `gorm:"type:varchar(10)" json:"last_check_in"`                  // 最近签到日（UTC，YYYY-MM-DD）
	LastWithdrawal  *time.Time `json:"last_withdrawal"`                                        // 最近一次提现时间
	Version         int        `gorm:"not null;default:0" json:"version"`                      // 乐观锁版本号
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Player) TableName() string {
	return "player"
}

// WalletBound 判断玩家是否已绑定钱包
// 已绑定的身份不允许重新注册（防止重置账号刷初始金币）
func (p *Player) WalletBound() bool {
	return p.WalletAddress != ""
}
