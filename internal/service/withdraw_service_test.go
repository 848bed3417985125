package service

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"gamevault/internal/chain"
	"gamevault/internal/config"
	"gamevault/internal/game"
	"gamevault/internal/ledger"
	"gamevault/internal/model"
	"gamevault/internal/repository"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"
	testVault  = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

func testConfig() *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{
			VaultAddress: testVault,
			SellRate:     1100,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				BattleSettled: "battle.settled",
				WithdrawClaim: "withdraw.claim",
			},
		},
		Business: config.BusinessConfig{
			DailyGameLimit: 10000,
			MaxRetryCount:  3,
			ResignAfterSec: 60,
		},
	}
}

func newChainSigner(t *testing.T) *chain.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := chain.NewSigner(hex.EncodeToString(crypto.FromECDSA(key)), testVault)
	require.NoError(t, err)
	return signer
}

// memClaimStore 基于内存账本的凭证附属记录实现 ClaimStore 契约，
// 状态流转校验与 repository.ClaimRepository 保持一致
type memClaimStore struct {
	mu    sync.Mutex
	store *ledger.MemoryStore
}

func newMemClaimStore(store *ledger.MemoryStore) *memClaimStore {
	return &memClaimStore{store: store}
}

func (m *memClaimStore) findByClaimNo(claimNo string) *model.WithdrawClaim {
	for _, c := range m.store.Claims {
		if c.ClaimNo == claimNo {
			return c
		}
	}
	return nil
}

func (m *memClaimStore) GetByClaimNo(ctx context.Context, claimNo string) (*model.WithdrawClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findByClaimNo(claimNo)
	if c == nil {
		return nil, repository.ErrClaimNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memClaimStore) GetByNonce(ctx context.Context, nonce int64) (*model.WithdrawClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.store.Claims {
		if c.Nonce == nonce {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrClaimNotFound
}

func (m *memClaimStore) AttachSignature(ctx context.Context, claimNo, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findByClaimNo(claimNo)
	if c == nil {
		return repository.ErrClaimNotFound
	}
	if !model.ClaimCanTransitionTo(c.Status, model.ClaimStatusPrepared) {
		return repository.ErrClaimStatusInvalid
	}
	c.Signature = signature
	c.Status = model.ClaimStatusPrepared
	return nil
}

func (m *memClaimStore) MarkDone(ctx context.Context, claimNo, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findByClaimNo(claimNo)
	if c == nil {
		return repository.ErrClaimNotFound
	}
	if !model.ClaimCanTransitionTo(c.Status, model.ClaimStatusDone) {
		return repository.ErrClaimStatusInvalid
	}
	now := time.Now()
	c.Status = model.ClaimStatusDone
	c.TxHash = &txHash
	c.ConfirmedAt = &now
	return nil
}

func (m *memClaimStore) ListByPlayerID(ctx context.Context, playerID string, page, pageSize int) ([]*model.WithdrawClaim, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WithdrawClaim
	for _, c := range m.store.Claims {
		if c.PlayerID == playerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

// failingSigner 模拟签名服务不可用
type failingSigner struct {
	vault string
}

func (f *failingSigner) SignClaim(wallet string, tokenAmount *big.Int, nonce int64) (string, error) {
	return "", errors.New("kms unavailable")
}

func (f *failingSigner) Vault() string { return f.vault }

func seedLedgerPlayer(t *testing.T, store *ledger.MemoryStore, coin int64) {
	t.Helper()
	err := store.Create(context.Background(), &model.Player{
		PlayerID:       "p1",
		Name:           "alice",
		WalletAddress:  testWallet,
		Coin:           coin,
		Level:          1,
		MaxHP:          20,
		LastRewardDate: game.UTCDay(time.Now()),
	}, nil)
	require.NoError(t, err)
}

func TestWithdrawSuccess(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedLedgerPlayer(t, store, 5000)
	claims := newMemClaimStore(store)
	signer := newChainSigner(t)
	svc := NewWithdrawService(store, claims, signer, nil, testConfig())

	resp, err := svc.Withdraw(context.Background(), &WithdrawRequest{
		PlayerID: "p1",
		Wallet:   testWallet,
		Amount:   1100,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3900), resp.Coin)
	assert.Equal(t, "1000000000000000000", resp.TokenAmount)
	assert.Equal(t, model.ClaimStatusPrepared, resp.Status)
	assert.NotEmpty(t, resp.ClaimNo)
	assert.NotZero(t, resp.Nonce)

	// 签名必须能恢复出签名者自己的地址
	amount, _ := new(big.Int).SetString(resp.TokenAmount, 10)
	recovered, err := chain.RecoverClaimSigner(testWallet, amount, resp.Nonce, resp.VaultAddress, resp.Signature)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)

	// 账本侧：扣款、凭证、流水、outbox 同一事务落库
	p, err := store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3900), p.Coin)

	require.Len(t, store.Claims, 1)
	claim := store.Claims[0]
	assert.Equal(t, model.ClaimStatusPrepared, claim.Status)
	assert.Equal(t, resp.Signature, claim.Signature)
	assert.Equal(t, resp.Nonce, claim.Nonce)

	require.Len(t, store.Transactions, 1)
	assert.Equal(t, model.TransactionTypeWithdraw, store.Transactions[0].Type)
	assert.Equal(t, int64(-1100), store.Transactions[0].Amount)
	assert.Equal(t, int64(5000), store.Transactions[0].BalanceBefore)
	assert.Equal(t, int64(3900), store.Transactions[0].BalanceAfter)

	require.Len(t, store.Outbox, 1)
	assert.Equal(t, "withdraw.claim", store.Outbox[0].Topic)
}

func TestWithdrawAmountTooSmall(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedLedgerPlayer(t, store, 5000)
	svc := NewWithdrawService(store, newMemClaimStore(store), newChainSigner(t), nil, testConfig())

	_, err := svc.Withdraw(context.Background(), &WithdrawRequest{
		PlayerID: "p1",
		Wallet:   testWallet,
		Amount:   0,
	})
	assert.ErrorIs(t, err, chain.ErrAmountTooSmall)

	// 预检失败无任何状态变更
	p, _ := store.Get(context.Background(), "p1")
	assert.Equal(t, int64(5000), p.Coin)
	assert.Empty(t, store.Claims)
	assert.Empty(t, store.Transactions)
}

func TestWithdrawWalletMismatch(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedLedgerPlayer(t, store, 5000)
	svc := NewWithdrawService(store, newMemClaimStore(store), newChainSigner(t), nil, testConfig())

	_, err := svc.Withdraw(context.Background(), &WithdrawRequest{
		PlayerID: "p1",
		Wallet:   "0x1111111111111111111111111111111111111111",
		Amount:   1100,
	})
	assert.ErrorIs(t, err, game.ErrWalletMismatch)

	p, _ := store.Get(context.Background(), "p1")
	assert.Equal(t, int64(5000), p.Coin)
	assert.Empty(t, store.Claims)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedLedgerPlayer(t, store, 1000)
	svc := NewWithdrawService(store, newMemClaimStore(store), newChainSigner(t), nil, testConfig())

	_, err := svc.Withdraw(context.Background(), &WithdrawRequest{
		PlayerID: "p1",
		Wallet:   testWallet,
		Amount:   1100,
	})
	assert.ErrorIs(t, err, game.ErrInsufficientFunds)

	p, _ := store.Get(context.Background(), "p1")
	assert.Equal(t, int64(1000), p.Coin)
}

func TestWithdrawNotRegistered(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewWithdrawService(store, newMemClaimStore(store), newChainSigner(t), nil, testConfig())

	_, err := svc.Withdraw(context.Background(), &WithdrawRequest{
		PlayerID: "ghost",
		Wallet:   testWallet,
		Amount:   1100,
	})
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// 签名失败时扣款保持生效，凭证停留在 CREATED 等待补签
func TestWithdrawSigningFailure(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedLedgerPlayer(t, store, 5000)
	claims := newMemClaimStore(store)
	svc := NewWithdrawService(store, claims, &failingSigner{vault: testVault}, nil, testConfig())

	resp, err := svc.Withdraw(context.Background(), &WithdrawRequest{
		PlayerID: "p1",
		Wallet:   testWallet,
		Amount:   1100,
	})
	assert.ErrorIs(t, err, ErrSigningFailure)

	// 响应里必须带上 claim_no，客户端靠它轮询补签进度
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.ClaimNo)
	assert.Equal(t, model.ClaimStatusCreated, resp.Status)

	p, _ := store.Get(context.Background(), "p1")
	assert.Equal(t, int64(3900), p.Coin)

	require.Len(t, store.Claims, 1)
	claim := store.Claims[0]
	assert.Equal(t, model.ClaimStatusCreated, claim.Status)
	assert.Empty(t, claim.Signature)

	// 补签：用库里固定的 nonce 重新签名后凭证进入 PREPARED
	realSigner := newChainSigner(t)
	amount, _ := new(big.Int).SetString(claim.TokenAmount, 10)
	sig, err := realSigner.SignClaim(claim.WalletAddress, amount, claim.Nonce)
	require.NoError(t, err)
	require.NoError(t, claims.AttachSignature(context.Background(), claim.ClaimNo, sig))

	refreshed, err := claims.GetByClaimNo(context.Background(), claim.ClaimNo)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusPrepared, refreshed.Status)

	// 补签不重复扣款
	p2, _ := store.Get(context.Background(), "p1")
	assert.Equal(t, int64(3900), p2.Coin)
}

func TestListClaims(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedLedgerPlayer(t, store, 10000)
	claims := newMemClaimStore(store)
	svc := NewWithdrawService(store, claims, newChainSigner(t), nil, testConfig())

	for i := 0; i < 3; i++ {
		_, err := svc.Withdraw(context.Background(), &WithdrawRequest{
			PlayerID: "p1",
			Wallet:   testWallet,
			Amount:   1100,
		})
		require.NoError(t, err)
	}

	list, total, err := svc.ListClaims(context.Background(), "p1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)

	// 每张凭证的 nonce 互不相同
	nonces := map[int64]bool{}
	for _, c := range list {
		nonces[c.Nonce] = true
	}
	assert.Len(t, nonces, 3)
}
