package handler

import (
	"gamevault/internal/chain"
	"gamevault/internal/config"
	"gamevault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, signer *chain.Signer, chainClient service.ChainQuery) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg, signer, chainClient)
	auth := AuthMiddleware(&cfg.Auth)

	api := r.Group("/api/v1")
	{
		// 玩家相关
		player := api.Group("/player")
		{
			player.POST("/register", h.Register)
			player.POST("/login", h.Login)
			player.GET("/profile", auth, h.Profile)
			player.POST("/checkin", auth, h.CheckIn)
			player.GET("/transactions", auth, h.ListTransactions)
		}

		// 战斗相关
		battle := api.Group("/battle")
		{
			battle.GET("/monsters", h.Monsters)
			battle.POST("/start", auth, h.BattleStart)
			battle.POST("/result", auth, h.BattleResult)
		}

		// 提现相关
		withdraw := api.Group("/withdraw")
		{
			withdraw.POST("/execute", auth, h.Withdraw)
			withdraw.POST("/confirm", auth, h.ConfirmWithdraw)
			withdraw.GET("/list", auth, h.ListWithdrawals)
		}

		// 排行榜
		api.GET("/leaderboard", h.Leaderboard)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
