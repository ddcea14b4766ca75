package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/models"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the token header into the signed-in user and
// fills the request context with the tenant identity the models layer
// expects. Requests without a token pass through so public routes still work.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)

		user := models.User{}
		cached, err := config.GetRedisObject("User:"+username, &user)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			c.Abort()
			return
		}
		if !cached {
			found, err := models.GetUserByUsername(ctx, username)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
			user = *found
			if err := config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan()); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
				c.Abort()
				return
			}
		}

		ctx = utils.SetOrganizationIdInContext(ctx, user.OrganizationId)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		if user.Role == models.UserRoleAdmin {
			ctx = utils.SetIsAdminInContext(ctx, true)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
