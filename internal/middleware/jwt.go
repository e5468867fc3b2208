package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

var errTokenMissing = errors.New("authorization header or token query required")

// RequireExaminer validates an examiner JWT from the Authorization header,
// or from ?token= for EventSource clients.
func RequireExaminer(authService *service.AuthService) gin.HandlerFunc {
	return requireType(authService, model.UserTypeExaminer, response.ErrExaminerAccessOnly, headerOrQueryToken)
}

// RequireStudent validates a student JWT from the Authorization header.
func RequireStudent(authService *service.AuthService) gin.HandlerFunc {
	return requireType(authService, model.UserTypeStudent, response.ErrStudentAccessOnly, headerOrQueryToken)
}

// RequireStudentWS validates a student JWT from the query param ?token=...
// Used for WebSocket upgrade requests.
func RequireStudentWS(authService *service.AuthService) gin.HandlerFunc {
	return requireType(authService, model.UserTypeStudent, response.ErrStudentAccessOnly, queryToken)
}

func requireType(authService *service.AuthService, want model.UserType, forbidden response.ErrCode, extract func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validate(c, authService, extract)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, tokenErrCode(err))
			return
		}

		if claims.UserType != want {
			response.AbortFail(c, http.StatusForbidden, forbidden)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func validate(c *gin.Context, authService *service.AuthService, extract func(*gin.Context) string) (*service.Claims, error) {
	tokenStr := extract(c)
	if tokenStr == "" {
		return nil, errTokenMissing
	}
	return authService.ValidateToken(tokenStr)
}

func tokenErrCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, errTokenMissing):
		return response.ErrTokenRequired
	case errors.Is(err, service.ErrTokenExpired):
		return response.ErrTokenExpired
	default:
		return response.ErrTokenInvalid
	}
}

func headerOrQueryToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// Fallback for EventSource (SSE) which cannot send headers
	return queryToken(c)
}

func queryToken(c *gin.Context) string {
	return c.Query("token")
}
