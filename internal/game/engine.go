package game

import (
	"errors"
	"strings"
	"time"

	"gamevault/internal/model"
)

// ============================================================================
// 经济引擎
// ============================================================================
//
// 四个经济操作（注册/开战/结算/提现）的纯计算部分：
// 输入当前玩家快照 + 参数，原地更新快照并返回结算明细。
// 引擎不做任何 I/O，调用方负责把它放进账本存储的原子事务里执行。
// 同一快照 + 同一参数，结果完全确定，事务重试天然安全。

var (
	ErrInsufficientCoin  = errors.New("金币不足，无法支付入场费")
	ErrInsufficientFunds = errors.New("余额不足，无法提现")
	ErrWalletMismatch    = errors.New("钱包地址与账户绑定地址不一致")
	ErrInvalidAmount     = errors.New("金额必须大于 0")
	ErrInvalidResult     = errors.New("无效的战斗结果")
	ErrAlreadyCheckedIn  = errors.New("今日已签到")
	ErrBattleInProgress  = errors.New("已有托管中的战斗，请先结算")
	ErrNoActiveBattle    = errors.New("没有托管中的战斗，请先开战")
	ErrMonsterMismatch   = errors.New("结算怪物与开战时不一致")
)

// 注册时的初始数值
const (
	StartingCoin  = 40
	StartingLevel = 1
)

// UTCDay 返回 UTC 日历日戳（YYYY-MM-DD）
// 每日收益上限、签到都以 UTC 日为界，避免服务器时区迁移导致重复发奖
func UTCDay(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// NewPlayer 构造新注册玩家的初始快照
func NewPlayer(playerID, name, wallet string, now time.Time) *model.Player {
	return &model.Player{
		PlayerID:       playerID,
		Name:           name,
		WalletAddress:  wallet,
		Coin:           StartingCoin,
		Level:          StartingLevel,
		Exp:            0,
		MaxHP:          MaxHP(StartingLevel),
		EarnedToday:    0,
		LastRewardDate: UTCDay(now),
	}
}

// ApplyBattleStart 开战扣入场费
//
// 【托管模式】入场费在胜负未定时就先扣掉，防止玩家打输后断线逃单；
// 快照上记下托管标记和对手，结算时凭标记返还/奖励。
// 已有托管中的战斗时不允许再开（先结算或弃战）。返回扣掉的入场费。
func ApplyBattleStart(p *model.Player, m Monster) (int64, error) {
	if p.InBattle {
		return 0, ErrBattleInProgress
	}
	fee := EntryFee(p.Level)
	if p.Coin < fee {
		return 0, ErrInsufficientCoin
	}
	p.Coin -= fee
	p.InBattle = true
	p.BattleMonsterID = m.ID
	return fee, nil
}

// BattleOutcome 战斗结算明细
// 这些派生字段是响应契约的一部分，客户端依赖它们展示结算弹窗
type BattleOutcome struct {
	EntryFee      int64 `json:"entry_fee"`      // 本场入场费（开战时已扣）
	FeeRefund     int64 `json:"fee_refund"`     // 返还的入场费
	RewardCoin    int64 `json:"reward_coin"`    // 净收益（已过每日上限钳制）
	RewardExp     int64 `json:"reward_exp"`     // 经验奖励
	AllowedProfit int64 `json:"allowed_profit"` // 本场允许入账的收益
	HitDailyLimit bool  `json:"hit_daily_limit"`
	IsLevelUp     bool  `json:"is_level_up"`
	LevelsGained  int   `json:"levels_gained"`
}

// rolloverDailyCounter 跨日重置今日收益计数
// 必须在发放任何奖励之前执行
func rolloverDailyCounter(p *model.Player, now time.Time) {
	today := UTCDay(now)
	if p.LastRewardDate != today {
		p.EarnedToday = 0
		p.LastRewardDate = today
	}
}

// clampDailyProfit 对收益做每日上限钳制
// 上限约束的是"净收益"而不是流水总额，入场费返还不占额度
func clampDailyProfit(p *model.Player, baseReward, dailyLimit int64) (allowed int64, hit bool) {
	remaining := dailyLimit - p.EarnedToday
	if remaining < 0 {
		remaining = 0
	}
	if baseReward <= remaining {
		return baseReward, false
	}
	return remaining, true
}

// GrantExp 发放经验并处理升级
// 经验累计制，升级不清零；一次发放可能连升多级（不封顶）
func GrantExp(p *model.Player, exp int64) (levelsGained int) {
	p.Exp += exp
	for p.Exp >= ExpToReach(p.Level+1) {
		p.Level++
		levelsGained++
	}
	if levelsGained > 0 {
		p.MaxHP = MaxHP(p.Level)
	}
	return levelsGained
}

// ApplyBattleResult 战斗结算
//
// 只有快照上有托管标记（开战时扣过入场费）才允许结算，
// 且结算对手必须是开战时的那只怪——否则返还就是凭空铸币。
// 按结果返还/奖励：
//   - 胜利：全额返还入场费 + 发放收益（过每日上限钳制）+ 经验
//   - 失败：对方残血 <50% 算"虽败犹荣"，返还一半入场费；否则全额没收
//   - 平局：不动金币，客户端可re-开战
//
// 结算后解除托管标记；同一场托管不可能被结算两次
func ApplyBattleResult(p *model.Player, m Monster, result string, playerHpPct, enemyHpPct float64, now time.Time, dailyLimit int64) (*BattleOutcome, error) {
	if !p.InBattle {
		return nil, ErrNoActiveBattle
	}
	if p.BattleMonsterID != m.ID {
		return nil, ErrMonsterMismatch
	}

	fee := EntryFee(p.Level)
	out := &BattleOutcome{EntryFee: fee}

	rolloverDailyCounter(p, now)

	switch result {
	case model.BattleResultWin:
		// 残血获胜只拿一半基础奖励
		baseReward := m.HP
		if playerHpPct < 0.5 {
			baseReward = m.HP / 2
		}

		allowed, hit := clampDailyProfit(p, baseReward, dailyLimit)
		out.AllowedProfit = allowed
		out.HitDailyLimit = hit
		out.FeeRefund = fee
		out.RewardCoin = allowed
		out.RewardExp = ExpReward(m.Type)

		p.Coin += fee + allowed
		p.EarnedToday += allowed
		out.LevelsGained = GrantExp(p, out.RewardExp)
		out.IsLevelUp = out.LevelsGained > 0

	case model.BattleResultLose:
		if enemyHpPct < 0.5 {
			// 虽败犹荣：返还一半，剩下一半永久损失
			out.FeeRefund = fee / 2
			p.Coin += out.FeeRefund
		}

	case model.BattleResultDraw:
		// 平局不结算，重赛走一次新的开战扣费

	default:
		return nil, ErrInvalidResult
	}

	// 结算完成，解除托管
	p.InBattle = false
	p.BattleMonsterID = 0

	// 扣款在开战时已完成，这里理论上不会出现负数
	if p.Coin < 0 {
		p.Coin = 0
	}

	return out, nil
}

// ApplyWithdraw 提现扣款
// 钱包地址大小写不敏感比对，防止提到身份不符的地址
func ApplyWithdraw(p *model.Player, wallet string, amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !strings.EqualFold(p.WalletAddress, wallet) {
		return ErrWalletMismatch
	}
	if p.Coin < amount {
		return ErrInsufficientFunds
	}
	p.Coin -= amount
	t := now
	p.LastWithdrawal = &t
	return nil
}

// CheckInOutcome 签到结算明细
type CheckInOutcome struct {
	Streak        int   `json:"streak"`
	Bonus         int64 `json:"bonus"` // 实际入账的奖励（过每日上限钳制）
	HitDailyLimit bool  `json:"hit_daily_limit"`
}

// 签到奖励：基础 5 金币 + 连签加成，封顶 20
const (
	checkInBaseBonus = 5
	checkInMaxBonus  = 20
)

// ApplyCheckIn 每日签到
// 连续签到天数+1（断签重置为 1），奖励计入每日收益额度
func ApplyCheckIn(p *model.Player, now time.Time, dailyLimit int64) (*CheckInOutcome, error) {
	today := UTCDay(now)
	if p.LastCheckIn == today {
		return nil, ErrAlreadyCheckedIn
	}

	yesterday := UTCDay(now.AddDate(0, 0, -1))
	if p.LastCheckIn == yesterday {
		p.CheckInStreak++
	} else {
		p.CheckInStreak = 1
	}
	p.LastCheckIn = today

	rolloverDailyCounter(p, now)

	bonus := int64(checkInBaseBonus + p.CheckInStreak)
	if bonus > checkInMaxBonus {
		bonus = checkInMaxBonus
	}

	allowed, hit := clampDailyProfit(p, bonus, dailyLimit)
	p.Coin += allowed
	p.EarnedToday += allowed

	return &CheckInOutcome{
		Streak:        p.CheckInStreak,
		Bonus:         allowed,
		HitDailyLimit: hit,
	}, nil
}
