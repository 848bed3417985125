package repository

import (
	"context"
	"errors"
	"time"

	"gamevault/internal/model"

	"gorm.io/gorm"
)

var (
	ErrClaimNotFound      = errors.New("提现凭证不存在")
	ErrClaimStatusInvalid = errors.New("凭证状态不合法")
)

// ClaimRepository 提现凭证仓储
// 凭证的创建发生在账本事务里（ledger.Effects），这里只负责查询和状态流转
type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) GetByClaimNo(ctx context.Context, claimNo string) (*model.WithdrawClaim, error) {
	var claim model.WithdrawClaim
	err := r.db.WithContext(ctx).Where("claim_no = ?", claimNo).First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

func (r *ClaimRepository) GetByNonce(ctx context.Context, nonce int64) (*model.WithdrawClaim, error) {
	var claim model.WithdrawClaim
	err := r.db.WithContext(ctx).Where("nonce = ?", nonce).First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

// AttachSignature 填入签名并把凭证从 CREATED 推到 PREPARED
// 条件更新带上当前状态，补签任务和请求路径并发补签时只有一个生效
func (r *ClaimRepository) AttachSignature(ctx context.Context, claimNo, signature string) error {
	if !model.ClaimCanTransitionTo(model.ClaimStatusCreated, model.ClaimStatusPrepared) {
		return ErrClaimStatusInvalid
	}

	result := r.db.WithContext(ctx).
		Model(&model.WithdrawClaim{}).
		Where("claim_no = ? AND status = ?", claimNo, model.ClaimStatusCreated).
		Updates(map[string]interface{}{
			"signature": signature,
			"status":    model.ClaimStatusPrepared,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimStatusInvalid
	}
	return nil
}

// MarkDone 链上确认后落终态
func (r *ClaimRepository) MarkDone(ctx context.Context, claimNo, txHash string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.WithdrawClaim{}).
		Where("claim_no = ? AND status = ?", claimNo, model.ClaimStatusPrepared).
		Updates(map[string]interface{}{
			"status":       model.ClaimStatusDone,
			"tx_hash":      txHash,
			"confirmed_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimStatusInvalid
	}
	return nil
}

// GetUnsignedClaims 拉取签名失败待补签的凭证
// 只取创建时间早于 before 的，避免和正常请求路径的签名赛跑
func (r *ClaimRepository) GetUnsignedClaims(ctx context.Context, before time.Time, limit int) ([]*model.WithdrawClaim, error) {
	var claims []*model.WithdrawClaim
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.ClaimStatusCreated, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&claims).Error
	return claims, err
}

func (r *ClaimRepository) ListByPlayerID(ctx context.Context, playerID string, page, pageSize int) ([]*model.WithdrawClaim, int64, error) {
	var claims []*model.WithdrawClaim
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WithdrawClaim{}).Where("player_id = ?", playerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&claims).Error

	return claims, total, err
}
