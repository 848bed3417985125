package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gamevault/internal/config"
	"gamevault/internal/game"
	"gamevault/internal/ledger"
	"gamevault/internal/model"
	"gamevault/pkg/idgen"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

var (
	ErrMonsterNotFound = errors.New("怪物不存在")
)

// BattleService 开战扣费与战斗结算
type BattleService struct {
	store       ledger.Store
	rdb         *redis.Client
	cfg         *config.Config
	leaderboard *Leaderboard
}

func NewBattleService(store ledger.Store, rdb *redis.Client, cfg *config.Config) *BattleService {
	return &BattleService{
		store:       store,
		rdb:         rdb,
		cfg:         cfg,
		leaderboard: NewLeaderboard(rdb),
	}
}

type BattleStartResponse struct {
	BattleNo  string `json:"battle_no"`
	MonsterID int    `json:"monster_id"`
	EntryFee  int64  `json:"entry_fee"`
	Coin      int64  `json:"coin"`
}

// Start 开战：托管扣除入场费
//
// 【托管模式】费用在胜负未定时先扣，玩家打输后断线也逃不掉；
// 结算时按结果返还。连点开战由玩家锁串行化，第二次请求
// 读到的是扣费后的余额，余额不够直接 INSUFFICIENT_COIN
func (s *BattleService) Start(ctx context.Context, playerID string, monsterID int) (*BattleStartResponse, error) {
	monster, ok := game.MonsterByID(monsterID)
	if !ok {
		return nil, ErrMonsterNotFound
	}

	battleNo := idgen.GenerateBattleNo()
	var resp *BattleStartResponse

	err := withPlayerLock(ctx, s.rdb, playerID, func() error {
		return s.store.RunAtomic(ctx, playerID, func(p *model.Player) (*ledger.Effects, error) {
			before := p.Coin
			fee, err := game.ApplyBattleStart(p, monster)
			if err != nil {
				return nil, err
			}

			resp = &BattleStartResponse{
				BattleNo:  battleNo,
				MonsterID: monsterID,
				EntryFee:  fee,
				Coin:      p.Coin,
			}
			return &ledger.Effects{
				Transactions: []*model.CoinTransaction{{
					TransactionNo: idgen.GenerateTransactionNo(),
					PlayerID:      playerID,
					RefNo:         battleNo,
					Amount:        -fee,
					Type:          model.TransactionTypeBattleFee,
					BalanceBefore: before,
					BalanceAfter:  p.Coin,
					Remark:        fmt.Sprintf("入场费-%s", monster.Name),
				}},
			}, nil
		})
	})
	if errors.Is(err, ledger.ErrPlayerNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type BattleResultRequest struct {
	PlayerID     string  `json:"player_id"`
	MonsterID    int     `json:"monster_id" binding:"required"`
	Result       string  `json:"result" binding:"required,oneof=win lose draw"`
	PlayerHpPct  float64 `json:"player_hp_pct" binding:"gte=0,lte=1"`
	EnemyHpPct   float64 `json:"enemy_hp_pct" binding:"gte=0,lte=1"`
	BattleNo     string  `json:"battle_no"`
}

type BattleResultResponse struct {
	BattleNo      string `json:"battle_no"`
	Result        string `json:"result"`
	Coin          int64  `json:"coin"`
	Level         int    `json:"level"`
	Exp           int64  `json:"exp"`
	MaxHP         int    `json:"max_hp"`
	EntryFee      int64  `json:"entry_fee"`
	FeeRefund     int64  `json:"fee_refund"`
	RewardCoin    int64  `json:"reward_coin"`
	RewardExp     int64  `json:"reward_exp"`
	AllowedProfit int64  `json:"allowed_profit"`
	HitDailyLimit bool   `json:"hit_daily_limit"`
	IsLevelUp     bool   `json:"is_level_up"`
	EarnedToday   int64  `json:"earned_today"`
}

// Result 战斗结算
// 入场费在开战时已托管扣除，这里只做返还和奖励，不再二次扣费
func (s *BattleService) Result(ctx context.Context, req *BattleResultRequest) (*BattleResultResponse, error) {
	monster, ok := game.MonsterByID(req.MonsterID)
	if !ok {
		return nil, ErrMonsterNotFound
	}

	battleNo := req.BattleNo
	if battleNo == "" {
		battleNo = idgen.GenerateBattleNo()
	}

	var resp *BattleResultResponse
	var snapshot *model.Player

	err := withPlayerLock(ctx, s.rdb, req.PlayerID, func() error {
		return s.store.RunAtomic(ctx, req.PlayerID, func(p *model.Player) (*ledger.Effects, error) {
			before := p.Coin
			out, err := game.ApplyBattleResult(p, monster, req.Result, req.PlayerHpPct, req.EnemyHpPct, time.Now(), s.cfg.Business.DailyGameLimit)
			if err != nil {
				return nil, err
			}

			effects := &ledger.Effects{
				Battles: []*model.BattleRecord{{
					BattleNo:      battleNo,
					PlayerID:      req.PlayerID,
					MonsterID:     req.MonsterID,
					Result:        req.Result,
					EntryFee:      out.EntryFee,
					FeeRefund:     out.FeeRefund,
					RewardCoin:    out.RewardCoin,
					RewardExp:     out.RewardExp,
					HitDailyLimit: out.HitDailyLimit,
				}},
			}

			balance := before
			if out.FeeRefund > 0 {
				effects.Transactions = append(effects.Transactions, &model.CoinTransaction{
					TransactionNo: idgen.GenerateTransactionNo(),
					PlayerID:      req.PlayerID,
					RefNo:         battleNo,
					Amount:        out.FeeRefund,
					Type:          model.TransactionTypeBattleRefund,
					BalanceBefore: balance,
					BalanceAfter:  balance + out.FeeRefund,
					Remark:        fmt.Sprintf("入场费返还-%s", req.Result),
				})
				balance += out.FeeRefund
			}
			if out.RewardCoin > 0 {
				effects.Transactions = append(effects.Transactions, &model.CoinTransaction{
					TransactionNo: idgen.GenerateTransactionNo(),
					PlayerID:      req.PlayerID,
					RefNo:         battleNo,
					Amount:        out.RewardCoin,
					Type:          model.TransactionTypeBattleReward,
					BalanceBefore: balance,
					BalanceAfter:  balance + out.RewardCoin,
					Remark:        fmt.Sprintf("战斗奖励-%s", monster.Name),
				})
				balance += out.RewardCoin
			}

			// 结算事件走事务性 outbox，Kafka 投递失败不影响结算本身
			payload, _ := json.Marshal(map[string]interface{}{
				"battle_no":   battleNo,
				"player_id":   req.PlayerID,
				"monster_id":  req.MonsterID,
				"result":      req.Result,
				"reward_coin": out.RewardCoin,
				"reward_exp":  out.RewardExp,
				"level":       p.Level,
			})
			effects.Outbox = append(effects.Outbox, &model.OutboxMessage{
				MessageKey: req.PlayerID,
				Topic:      s.cfg.Kafka.Topic.BattleSettled,
				Payload:    string(payload),
			})

			resp = &BattleResultResponse{
				BattleNo:      battleNo,
				Result:        req.Result,
				Coin:          p.Coin,
				Level:         p.Level,
				Exp:           p.Exp,
				MaxHP:         p.MaxHP,
				EntryFee:      out.EntryFee,
				FeeRefund:     out.FeeRefund,
				RewardCoin:    out.RewardCoin,
				RewardExp:     out.RewardExp,
				AllowedProfit: out.AllowedProfit,
				HitDailyLimit: out.HitDailyLimit,
				IsLevelUp:     out.IsLevelUp,
				EarnedToday:   p.EarnedToday,
			}
			cp := *p
			snapshot = &cp
			return effects, nil
		})
	})
	if errors.Is(err, ledger.ErrPlayerNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}

	// 排行榜更新在事务之外，失败只记日志
	if err := s.leaderboard.UpdatePlayer(ctx, snapshot); err != nil {
		log.WithFields(log.Fields{
			"player_id": req.PlayerID,
		}).Warnf("更新排行榜失败: %v", err)
	}

	return resp, nil
}
