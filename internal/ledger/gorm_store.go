package ledger

import (
	"context"
	"errors"

	"gamevault/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errOptimisticLock CAS 失败的内部信号，触发重读重算
var errOptimisticLock = errors.New("乐观锁冲突")

// GormStore 基于 MySQL 的账本存储
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, playerID string) (*model.Player, error) {
	var p model.Player
	err := s.db.WithContext(ctx).Where("player_id = ?", playerID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) Create(ctx context.Context, p *model.Player, effects *Effects) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "player_id"}},
				DoNothing: true,
			}).
			Create(p).Error
		if err != nil {
			return err
		}
		// OnConflict DoNothing 时 gorm 不报错但也没插入，用主键回填判断
		if p.ID == 0 {
			return ErrPlayerExists
		}
		return createEffects(ctx, tx, effects)
	})
}

// RunAtomic 读-算-写循环，CAS 失败自动重读重算
//
// fn 返回业务错误时立即终止，不重试、不写入——
// 业务规则失败（余额不足等）换一个快照重算结果也不会变
func (s *GormStore) RunAtomic(ctx context.Context, playerID string, fn AtomicFn) error {
	for attempt := 0; attempt < maxAtomicAttempts; attempt++ {
		p, err := s.Get(ctx, playerID)
		if err != nil {
			return err
		}
		baseVersion := p.Version

		effects, err := fn(p)
		if err != nil {
			return err
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.commitSnapshot(ctx, tx, p, baseVersion); err != nil {
				return err
			}
			return createEffects(ctx, tx, effects)
		})
		if errors.Is(err, errOptimisticLock) {
			continue
		}
		return err
	}
	return ErrConflict
}

// commitSnapshot 版本守卫的条件更新，RowsAffected=0 即有并发写入者抢先
func (s *GormStore) commitSnapshot(ctx context.Context, tx *gorm.DB, p *model.Player, baseVersion int) error {
	result := tx.WithContext(ctx).
		Model(&model.Player{}).
		Where("player_id = ? AND version = ?", p.PlayerID, baseVersion).
		Updates(map[string]interface{}{
			"name":              p.Name,
			"wallet_address":    p.WalletAddress,
			"coin":              p.Coin,
			"level":             p.Level,
			"exp":               p.Exp,
			"max_hp":            p.MaxHP,
			"in_battle":         p.InBattle,
			"battle_monster_id": p.BattleMonsterID,
			"earned_today":      p.EarnedToday,
			"last_reward_date":  p.LastRewardDate,
			"check_in_streak":   p.CheckInStreak,
			"last_check_in":     p.LastCheckIn,
			"last_withdrawal":   p.LastWithdrawal,
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errOptimisticLock
	}
	return nil
}

func createEffects(ctx context.Context, tx *gorm.DB, effects *Effects) error {
	if effects == nil {
		return nil
	}
	for _, t := range effects.Transactions {
		if err := tx.WithContext(ctx).Create(t).Error; err != nil {
			return err
		}
	}
	for _, c := range effects.Claims {
		if err := tx.WithContext(ctx).Create(c).Error; err != nil {
			return err
		}
	}
	for _, b := range effects.Battles {
		if err := tx.WithContext(ctx).Create(b).Error; err != nil {
			return err
		}
	}
	for _, m := range effects.Outbox {
		if m.Status == "" {
			m.Status = model.OutboxStatusPending
		}
		if err := tx.WithContext(ctx).Create(m).Error; err != nil {
			return err
		}
	}
	return nil
}
