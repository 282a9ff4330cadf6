package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetime = 24 * time.Hour

// LoginInput is the login form payload.
type LoginInput struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler authenticates an agent and issues the JWT, both as a cookie
// and in the response body for API clients.
func LoginHandler(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := config.DB.Where("login = ?", input.Login).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants invalides"})
		return
	}
	if user.Status != "active" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Compte desactive"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants invalides"})
		return
	}

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"login":   user.Login,
		"exp":     time.Now().Add(tokenLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(config.JwtKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de signature du jeton"})
		return
	}

	c.SetCookie("auth_token", signed, int(tokenLifetime.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": signed, "login": user.Login, "fullName": user.FullName})
}

// LogoutHandler clears the cookie and drops the cached agent data.
func LogoutHandler(c *gin.Context) {
	if userID := currentUserID(c); userID != 0 && config.RDB != nil {
		config.RDB.Del(config.Ctx, fmt.Sprintf("agent:%d:data", userID))
	}
	c.SetCookie("auth_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Deconnecte"})
}

// MeHandler returns the authenticated agent's identity and capabilities.
func MeHandler(c *gin.Context) {
	roles, _ := c.Get("roles")
	permissions, _ := c.Get("permissions")
	c.JSON(http.StatusOK, gin.H{
		"user_id":     currentUserID(c),
		"login":       c.GetString("login"),
		"roles":       roles,
		"permissions": permissions,
	})
}
