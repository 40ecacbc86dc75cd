package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	InternalTokenHeader = "X-Internal-Token"

	UserContextKey = "userID"
	RoleContextKey = "role"
	ShopContextKey = "shopID"
	AdminRole      = "admin"
)

// InternalToken guards service-to-service endpoints. An empty expected token
// rejects every request.
func InternalToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthMiddleware trusts the identity headers set by the api-gateway.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, c.GetHeader("X-User-Role"))
		c.Set(ShopContextKey, c.GetHeader("X-Shop-ID"))
		c.Next()
	}
}

// ShopOwnerOrAdmin admits admins and members of the shop named by :shop_id.
func ShopOwnerOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleContextKey) == AdminRole {
			c.Next()
			return
		}
		if shop := c.GetString(ShopContextKey); shop == "" || shop != c.Param("shop_id") {
			c.JSON(http.StatusForbidden, gin.H{"error": "shop access denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(UserContextKey)
}
