package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-gradebook-api/internal/middleware"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
	"github.com/noah-isme/academy-gradebook-api/pkg/response"
)

// requireClaims returns the verified caller or writes a 401 and returns nil.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}
