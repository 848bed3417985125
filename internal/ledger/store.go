package ledger

import (
	"context"
	"errors"

	"gamevault/internal/model"
)

// ============================================================================
// 账本存储
// ============================================================================
//
// 【为什么抽象成 Store 接口？】
//
// 四个经济操作都遵循同一个模式：读快照 → 纯计算 → 条件写回。
// 并发安全完全由这一层保证（乐观锁 + 有限重试），
// 业务层和经济引擎不需要知道底层是 MySQL 还是内存。
//
// 【并发契约】同一 playerID 上的并发 RunAtomic 至多一个赢家：
//   goroutine1: 读 version=5 → 计算 → CAS(version=5) 成功，version=6
//   goroutine2: 读 version=5 → 计算 → CAS(version=5) 失败 → 重读 version=6 重算
// 重试次数耗尽返回 ErrConflict，此时没有任何部分写入，调用方可安全重试。

var (
	ErrPlayerNotFound = errors.New("玩家不存在")
	ErrPlayerExists   = errors.New("玩家已存在")
	// ErrConflict 乐观锁重试耗尽，无部分写入，可安全重试
	ErrConflict = errors.New("并发冲突，请重试")
)

// 乐观锁最大重试次数
const maxAtomicAttempts = 5

// Effects 随玩家快照一起原子提交的附属记录
//
// 【关键点】提现凭证必须和扣款在同一个事务里落库，
// 否则会出现"签名存在但没扣款"或"扣款了但没凭证"的双花窗口
type Effects struct {
	Transactions []*model.CoinTransaction
	Claims       []*model.WithdrawClaim
	Battles      []*model.BattleRecord
	Outbox       []*model.OutboxMessage
}

// AtomicFn 原子变更函数：原地修改快照，返回需要一并落库的附属记录
// 可能因冲突被重复执行，函数体内不允许有任何不可重入的副作用
// （签名、网络调用一律放在事务提交之后）
type AtomicFn func(p *model.Player) (*Effects, error)

// Store 账本存储接口
type Store interface {
	// Get 读取玩家快照，不存在返回 ErrPlayerNotFound
	Get(ctx context.Context, playerID string) (*model.Player, error)
	// Create 创建新玩家并原子落库附属记录，playerID 已存在返回 ErrPlayerExists
	Create(ctx context.Context, p *model.Player, effects *Effects) error
	// RunAtomic 在乐观锁事务中执行 fn，同一玩家的并发写至多一个成功
	RunAtomic(ctx context.Context, playerID string, fn AtomicFn) error
}
