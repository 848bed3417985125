package ledger

import (
	"context"
	"sync"

	"gamevault/internal/model"
)

// MemoryStore 内存账本存储
// 与 GormStore 遵守同一份并发契约（版本 CAS + 有限重试），
// 用于单测和本地联调，生产环境一律走 MySQL
type MemoryStore struct {
	mu      sync.Mutex
	players map[string]*model.Player

	// 附属记录按提交顺序追加，测试断言用
	Transactions []*model.CoinTransaction
	Claims       []*model.WithdrawClaim
	Battles      []*model.BattleRecord
	Outbox       []*model.OutboxMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{players: make(map[string]*model.Player)}
}

func (s *MemoryStore) Get(ctx context.Context, playerID string) (*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Create(ctx context.Context, p *model.Player, effects *Effects) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.PlayerID]; ok {
		return ErrPlayerExists
	}
	cp := *p
	s.players[p.PlayerID] = &cp
	s.appendEffects(effects)
	return nil
}

func (s *MemoryStore) RunAtomic(ctx context.Context, playerID string, fn AtomicFn) error {
	for attempt := 0; attempt < maxAtomicAttempts; attempt++ {
		p, err := s.Get(ctx, playerID)
		if err != nil {
			return err
		}
		baseVersion := p.Version

		// fn 在锁外执行，模拟真实存储里"读和写之间有并发窗口"
		effects, err := fn(p)
		if err != nil {
			return err
		}

		if s.commit(playerID, p, baseVersion, effects) {
			return nil
		}
	}
	return ErrConflict
}

func (s *MemoryStore) commit(playerID string, p *model.Player, baseVersion int, effects *Effects) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.players[playerID]
	if !ok || current.Version != baseVersion {
		return false
	}

	cp := *p
	cp.Version = baseVersion + 1
	s.players[playerID] = &cp

	s.appendEffects(effects)
	return true
}

func (s *MemoryStore) appendEffects(effects *Effects) {
	if effects == nil {
		return
	}
	s.Transactions = append(s.Transactions, effects.Transactions...)
	s.Claims = append(s.Claims, effects.Claims...)
	s.Battles = append(s.Battles, effects.Battles...)
	for _, m := range effects.Outbox {
		if m.Status == "" {
			m.Status = model.OutboxStatusPending
		}
		s.Outbox = append(s.Outbox, m)
	}
}
