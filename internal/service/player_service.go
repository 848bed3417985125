package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamevault/internal/config"
	"gamevault/internal/game"
	"gamevault/internal/infrastructure/lock"
	"gamevault/internal/ledger"
	"gamevault/internal/model"
	"gamevault/pkg/idgen"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

var (
	ErrAlreadyRegistered = errors.New("该玩家已绑定钱包，不能重复注册")
	ErrNotRegistered     = errors.New("玩家不存在，请先注册")
	ErrInvalidWallet     = errors.New("无效的钱包地址")
)

// PlayerService 玩家注册、资料、签到
type PlayerService struct {
	store ledger.Store
	rdb   *redis.Client
	cfg   *config.Config
}

func NewPlayerService(store ledger.Store, rdb *redis.Client, cfg *config.Config) *PlayerService {
	return &PlayerService{store: store, rdb: rdb, cfg: cfg}
}

// withPlayerLock 按玩家维度串行化入口
// 测试环境不接 Redis 时退化为直接执行（乐观锁仍然兜底）
func withPlayerLock(ctx context.Context, rdb *redis.Client, playerID string, fn func() error) error {
	if rdb == nil {
		return fn()
	}
	playerLock := lock.NewPlayerLock(rdb, playerID)
	if err := playerLock.Lock(ctx, 50*time.Millisecond, 20); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer playerLock.Unlock(ctx)
	return fn()
}

type RegisterRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Wallet   string `json:"wallet" binding:"required"`
}

// Register 注册玩家并绑定钱包
//
// 【关键点】钱包绑定是一次性的：
//   - 账户不存在 → 创建初始账户并绑定
//   - 账户存在但未绑定（历史存档）→ 重置为初始账户并绑定
//   - 账户已绑定 → ALREADY_REGISTERED，账户原样不动
//
// 已绑定身份若允许重新注册，玩家就能无限重置账号领取初始金币
func (s *PlayerService) Register(ctx context.Context, req *RegisterRequest) (*model.Player, error) {
	if !common.IsHexAddress(req.Wallet) {
		return nil, ErrInvalidWallet
	}

	var registered *model.Player
	err := withPlayerLock(ctx, s.rdb, req.PlayerID, func() error {
		now := time.Now()

		_, err := s.store.Get(ctx, req.PlayerID)
		if errors.Is(err, ledger.ErrPlayerNotFound) {
			fresh := game.NewPlayer(req.PlayerID, req.Name, req.Wallet, now)
			createErr := s.store.Create(ctx, fresh, &ledger.Effects{
				Transactions: []*model.CoinTransaction{registerGrant(req.PlayerID)},
			})
			if errors.Is(createErr, ledger.ErrPlayerExists) {
				// 创建竞态：对方刚注册成功，等价于已绑定
				return ErrAlreadyRegistered
			}
			if createErr != nil {
				return createErr
			}
			registered = fresh
			return nil
		}
		if err != nil {
			return err
		}

		// 已有存档：未绑定则重置为初始账户，已绑定则拒绝
		return s.store.RunAtomic(ctx, req.PlayerID, func(p *model.Player) (*ledger.Effects, error) {
			if p.WalletBound() {
				return nil, ErrAlreadyRegistered
			}
			fresh := game.NewPlayer(req.PlayerID, req.Name, req.Wallet, now)
			p.Name = fresh.Name
			p.WalletAddress = fresh.WalletAddress
			p.Coin = fresh.Coin
			p.Level = fresh.Level
			p.Exp = fresh.Exp
			p.MaxHP = fresh.MaxHP
			p.InBattle = false
			p.BattleMonsterID = 0
			p.EarnedToday = fresh.EarnedToday
			p.LastRewardDate = fresh.LastRewardDate
			p.CheckInStreak = 0
			p.LastCheckIn = ""
			registered = p
			return &ledger.Effects{
				Transactions: []*model.CoinTransaction{registerGrant(req.PlayerID)},
			}, nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"player_id": req.PlayerID,
		"wallet":    req.Wallet,
	}).Info("玩家注册成功")

	return registered, nil
}

func registerGrant(playerID string) *model.CoinTransaction {
	return &model.CoinTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		PlayerID:      playerID,
		Amount:        game.StartingCoin,
		Type:          model.TransactionTypeRegister,
		BalanceBefore: 0,
		BalanceAfter:  game.StartingCoin,
		Remark:        "注册赠送初始金币",
	}
}

// Profile 查询玩家快照
// 返回的永远是账本最后一次成功提交的状态，绝不返回推测值
func (s *PlayerService) Profile(ctx context.Context, playerID string) (*model.Player, error) {
	p, err := s.store.Get(ctx, playerID)
	if errors.Is(err, ledger.ErrPlayerNotFound) {
		return nil, ErrNotRegistered
	}
	return p, err
}

type CheckInResponse struct {
	Streak        int   `json:"streak"`
	Bonus         int64 `json:"bonus"`
	HitDailyLimit bool  `json:"hit_daily_limit"`
	Coin          int64 `json:"coin"`
}

// CheckIn 每日签到
func (s *PlayerService) CheckIn(ctx context.Context, playerID string) (*CheckInResponse, error) {
	var resp *CheckInResponse
	err := withPlayerLock(ctx, s.rdb, playerID, func() error {
		return s.store.RunAtomic(ctx, playerID, func(p *model.Player) (*ledger.Effects, error) {
			before := p.Coin
			out, err := game.ApplyCheckIn(p, time.Now(), s.cfg.Business.DailyGameLimit)
			if err != nil {
				return nil, err
			}

			effects := &ledger.Effects{}
			if out.Bonus > 0 {
				effects.Transactions = append(effects.Transactions, &model.CoinTransaction{
					TransactionNo: idgen.GenerateTransactionNo(),
					PlayerID:      playerID,
					Amount:        out.Bonus,
					Type:          model.TransactionTypeCheckIn,
					BalanceBefore: before,
					BalanceAfter:  p.Coin,
					Remark:        fmt.Sprintf("签到奖励-连续%d天", out.Streak),
				})
			}

			resp = &CheckInResponse{
				Streak:        out.Streak,
				Bonus:         out.Bonus,
				HitDailyLimit: out.HitDailyLimit,
				Coin:          p.Coin,
			}
			return effects, nil
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
