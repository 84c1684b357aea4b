package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/cafe-pos/pkg/response"
)

// 角色
const (
	RolePOSUser = "pos_user"
	RoleAdmin   = "admin"
	RoleKitchen = "kitchen"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// Claims JWT 载荷
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken 签发 HS256 token
func GenerateToken(secret, issuer string, userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken 校验签名、签发方与有效期
func ParseToken(secret, issuer, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID <= 0 || claims.Role == "" {
		return nil, errors.New("token missing user_id or role")
	}
	return claims, nil
}

// Auth 解析 Authorization: Bearer <token>，把 user_id 与 role 写入上下文
func Auth(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		claims, err := ParseToken(secret, issuer, token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRoles 仅允许指定角色访问
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[c.GetString(ctxRole)]; !ok {
			response.Forbidden(c, "role not allowed")
			return
		}
		c.Next()
	}
}

// UserID 当前调用者
func UserID(c *gin.Context) int64 { return c.GetInt64(ctxUserID) }

// Role 当前调用者角色
func Role(c *gin.Context) string { return c.GetString(ctxRole) }
