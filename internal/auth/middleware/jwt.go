package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lk2023060901/rerank-gateway/internal/auth"
	apperrors "github.com/lk2023060901/rerank-gateway/internal/pkg/errors"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	subjectKey = "subject"
	claimsKey  = "claims"
)

// JWTAuth JWT 认证中间件
func JWTAuth(jwtManager *auth.JWTManager, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization")
			return
		}

		token, err := auth.ExtractTokenFromHeader(authHeader)
		if err != nil {
			response.Unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := jwtManager.VerifyToken(token)
		if err != nil {
			log.WithContext(c.Request.Context()).Warn("invalid access token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()))
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.ErrorWithCode(c, apperrors.ErrAuthTokenExpired)
				return
			}
			response.ErrorWithCode(c, apperrors.ErrAuthInvalidToken)
			return
		}

		// 将调用方信息注入到上下文
		c.Set(subjectKey, claims.Subject)
		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithSubject(c.Request.Context(), claims.Subject))

		c.Next()
	}
}

// RequireScope 权限验证中间件（需要先经过 JWTAuth）
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			// 未启用认证时放行
			c.Next()
			return
		}

		if !claims.HasScope(scope) {
			response.ErrorWithCode(c, apperrors.ErrForbidden, "missing scope "+scope)
			return
		}

		c.Next()
	}
}

// GetSubject 从上下文获取调用方标识
func GetSubject(c *gin.Context) (string, bool) {
	subject := c.GetString(subjectKey)
	return subject, subject != ""
}

// GetClaims 从上下文获取 JWT 声明
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type, X-Request-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
