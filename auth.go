package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/louisvcarpet/offergo/models"
)

var jwtSecret []byte // loaded from config in main

// Authenticator is the auth port. The demo implementation is a placeholder
// credential check, not a security boundary; a real identity provider slots
// in behind the same interface.
type Authenticator interface {
	Authenticate(email, password string) (*models.User, error)
}

type demoAuthenticator struct {
	email string
}

func newDemoAuthenticator(email string) *demoAuthenticator {
	return &demoAuthenticator{email: strings.ToLower(strings.TrimSpace(email))}
}

func (a *demoAuthenticator) Authenticate(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != a.email {
		return nil, fmt.Errorf("invalid credentials")
	}
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return &user, nil
}

func issueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(jwtSecret)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		sub, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		if sub == "" || email == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		var userID uint
		if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil || userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Set("email", email)
		c.Next()
	}
}

// currentUser reads the identity the middleware stored on the context.
func currentUser(c *gin.Context) (uint, string, bool) {
	idVal, ok := c.Get("user_id")
	if !ok {
		return 0, "", false
	}
	emailVal, _ := c.Get("email")
	userID, ok := idVal.(uint)
	if !ok || userID == 0 {
		return 0, "", false
	}
	email, _ := emailVal.(string)
	return userID, email, true
}
