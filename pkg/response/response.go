package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码：稳定的机器可读错误种类，客户端按码分支处理
const (
	CodePlayerNotFound    = 1001
	CodeAlreadyRegistered = 1002
	CodeInsufficientCoin  = 1003
	CodeInsufficientFunds = 1004
	CodeWalletMismatch    = 1005
	CodeAmountTooSmall    = 1006
	CodeConflict          = 1007 // 并发冲突，可安全重试
	CodeSigningFailure    = 1008 // 扣款已生效，凭证待补签
	CodeClaimNotFound     = 1009
	CodeTxNotConfirmed    = 1010
	CodeMonsterNotFound   = 1011
	CodeAlreadyCheckedIn  = 1012
	CodeNoActiveBattle    = 1013 // 未开战就请求结算
	CodeBattleInProgress  = 1014 // 已有托管中的战斗
	CodeMonsterMismatch   = 1015 // 结算对手与开战时不一致
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    CodeUnauthorized,
		Message: message,
	})
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// BusinessError 返回业务错误，并附带数据（如签名失败时的凭证号）
func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

func BusinessErrorData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
