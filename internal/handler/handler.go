package handler

import (
	"errors"
	"strconv"
	"strings"

	"gamevault/internal/chain"
	"gamevault/internal/config"
	"gamevault/internal/game"
	"gamevault/internal/ledger"
	"gamevault/internal/repository"
	"gamevault/internal/service"
	"gamevault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	playerService   *service.PlayerService
	battleService   *service.BattleService
	withdrawService *service.WithdrawService
	claimService    *service.ClaimService
	leaderboard     *service.Leaderboard
	transactionRepo *repository.TransactionRepository
	cfg             *config.Config
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, signer *chain.Signer, chainClient service.ChainQuery) *Handler {
	store := ledger.NewGormStore(db)
	claimRepo := repository.NewClaimRepository(db)

	return &Handler{
		playerService:   service.NewPlayerService(store, rdb, cfg),
		battleService:   service.NewBattleService(store, rdb, cfg),
		withdrawService: service.NewWithdrawService(store, claimRepo, signer, rdb, cfg),
		claimService:    service.NewClaimService(claimRepo, chainClient),
		leaderboard:     service.NewLeaderboard(rdb),
		transactionRepo: repository.NewTransactionRepository(db),
		cfg:             cfg,
	}
}

// mapBusinessError 把业务错误映射到稳定的机器可读错误码
// 余额、等级等展示给玩家的数字永远来自账本最后一次成功提交的状态
func mapBusinessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyRegistered):
		response.BusinessError(c, response.CodeAlreadyRegistered, err.Error())
	case errors.Is(err, service.ErrNotRegistered), errors.Is(err, ledger.ErrPlayerNotFound):
		response.BusinessError(c, response.CodePlayerNotFound, err.Error())
	case errors.Is(err, service.ErrMonsterNotFound):
		response.BusinessError(c, response.CodeMonsterNotFound, err.Error())
	case errors.Is(err, game.ErrInsufficientCoin):
		response.BusinessError(c, response.CodeInsufficientCoin, err.Error())
	case errors.Is(err, game.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, game.ErrWalletMismatch):
		response.BusinessError(c, response.CodeWalletMismatch, err.Error())
	case errors.Is(err, game.ErrAlreadyCheckedIn):
		response.BusinessError(c, response.CodeAlreadyCheckedIn, err.Error())
	case errors.Is(err, game.ErrNoActiveBattle):
		response.BusinessError(c, response.CodeNoActiveBattle, err.Error())
	case errors.Is(err, game.ErrBattleInProgress):
		response.BusinessError(c, response.CodeBattleInProgress, err.Error())
	case errors.Is(err, game.ErrMonsterMismatch):
		response.BusinessError(c, response.CodeMonsterMismatch, err.Error())
	case errors.Is(err, chain.ErrAmountTooSmall):
		response.BusinessError(c, response.CodeAmountTooSmall, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		// 无部分写入，客户端可安全重试
		response.BusinessError(c, response.CodeConflict, err.Error())
	case errors.Is(err, service.ErrClaimNotFound):
		response.BusinessError(c, response.CodeClaimNotFound, err.Error())
	case errors.Is(err, service.ErrClaimNotReady):
		response.BusinessError(c, response.CodeSigningFailure, err.Error())
	case errors.Is(err, service.ErrTxNotConfirmed):
		response.BusinessError(c, response.CodeTxNotConfirmed, err.Error())
	case errors.Is(err, game.ErrInvalidAmount), errors.Is(err, game.ErrInvalidResult),
		errors.Is(err, service.ErrInvalidWallet), errors.Is(err, chain.ErrInvalidWallet):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 玩家相关接口
// ============================================================

// Register 注册并绑定钱包
// POST /api/v1/player/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	player, err := h.playerService.Register(c.Request.Context(), &req)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	token, err := IssueToken(&h.cfg.Auth, player.PlayerID)
	if err != nil {
		response.ServerError(c, "签发会话令牌失败")
		return
	}

	response.Success(c, gin.H{
		"player": player,
		"token":  token,
	})
}

// LoginRequest 登录请求：用绑定的钱包地址换会话令牌
type LoginRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Wallet   string `json:"wallet" binding:"required"`
}

// Login 登录
// POST /api/v1/player/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	player, err := h.playerService.Profile(c.Request.Context(), req.PlayerID)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	if !strings.EqualFold(player.WalletAddress, req.Wallet) {
		response.BusinessError(c, response.CodeWalletMismatch, "钱包地址与账户绑定地址不一致")
		return
	}

	token, err := IssueToken(&h.cfg.Auth, player.PlayerID)
	if err != nil {
		response.ServerError(c, "签发会话令牌失败")
		return
	}

	response.Success(c, gin.H{
		"player": player,
		"token":  token,
	})
}

// Profile 查询玩家资料
// GET /api/v1/player/profile
func (h *Handler) Profile(c *gin.Context) {
	player, err := h.playerService.Profile(c.Request.Context(), authedPlayerID(c))
	if err != nil {
		mapBusinessError(c, err)
		return
	}
	response.Success(c, player)
}

// CheckIn 每日签到
// POST /api/v1/player/checkin
func (h *Handler) CheckIn(c *gin.Context) {
	result, err := h.playerService.CheckIn(c.Request.Context(), authedPlayerID(c))
	if err != nil {
		mapBusinessError(c, err)
		return
	}
	response.Success(c, result)
}

// ListTransactions 查询金币流水
// GET /api/v1/player/transactions?page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.transactionRepo.ListByPlayerID(c.Request.Context(), authedPlayerID(c), page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 战斗相关接口
// ============================================================

// BattleStartRequest 开战请求
type BattleStartRequest struct {
	MonsterID int `json:"monster_id" binding:"required"`
}

// BattleStart 开战（托管扣入场费）
// POST /api/v1/battle/start
func (h *Handler) BattleStart(c *gin.Context) {
	var req BattleStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.battleService.Start(c.Request.Context(), authedPlayerID(c), req.MonsterID)
	if err != nil {
		mapBusinessError(c, err)
		return
	}
	response.Success(c, result)
}

// BattleResult 战斗结算
// POST /api/v1/battle/result
//
// 【关键点】结算只信服务端数据：客户端上报的是战斗过程
// （胜负、双方残血比例），金币和经验全部由服务端计算
func (h *Handler) BattleResult(c *gin.Context) {
	var req service.BattleResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.PlayerID = authedPlayerID(c)

	result, err := h.battleService.Result(c.Request.Context(), &req)
	if err != nil {
		mapBusinessError(c, err)
		return
	}
	response.Success(c, result)
}

// Monsters 怪物图鉴
// GET /api/v1/battle/monsters
func (h *Handler) Monsters(c *gin.Context) {
	response.Success(c, game.Monsters())
}

// ============================================================
// 提现相关接口
// ============================================================

// Withdraw 提现
// POST /api/v1/withdraw/execute
//
// 【关键点】提现是整个系统最敏感的操作：
// 1. 扣款和凭证在同一事务，杜绝双花窗口
// 2. 签名在事务提交之后，重试不会重复签名
// 3. 签名失败时扣款保留，凭证由补签任务兜底
func (h *Handler) Withdraw(c *gin.Context) {
	var req service.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.PlayerID = authedPlayerID(c)

	result, err := h.withdrawService.Withdraw(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrSigningFailure) {
			// 扣款已生效：把凭证号带回去，客户端轮询凭证状态
			response.BusinessErrorData(c, response.CodeSigningFailure, err.Error(), result)
			return
		}
		mapBusinessError(c, err)
		return
	}
	response.Success(c, result)
}

// ConfirmWithdraw 确认链上领取交易
// POST /api/v1/withdraw/confirm
func (h *Handler) ConfirmWithdraw(c *gin.Context) {
	var req service.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	claim, err := h.claimService.Confirm(c.Request.Context(), &req)
	if err != nil {
		mapBusinessError(c, err)
		return
	}
	response.Success(c, claim)
}

// ListWithdrawals 查询提现记录
// GET /api/v1/withdraw/list?page=1&page_size=10
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	claims, total, err := h.withdrawService.ListClaims(c.Request.Context(), authedPlayerID(c), page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      claims,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 排行榜接口
// ============================================================

// Leaderboard 排行榜
// GET /api/v1/leaderboard?type=level|coin&limit=10
func (h *Handler) Leaderboard(c *gin.Context) {
	key := service.LeaderboardLevelKey
	if c.DefaultQuery("type", "level") == "coin" {
		key = service.LeaderboardCoinKey
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)

	entries, err := h.leaderboard.Top(c.Request.Context(), key, limit)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, entries)
}
