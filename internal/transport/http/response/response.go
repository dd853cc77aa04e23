package response

import "github.com/gin-gonic/gin"

// The API keeps the original's plain bodies: {"message": ...} for auth
// and conversation endpoints, {"error": ...} for chat and file ones.

func Message(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

func Err(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
