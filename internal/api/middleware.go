package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"learnhub/bounty-pipeline/internal/auth"
	"learnhub/bounty-pipeline/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/time/rate"
)

// Constants for context keys
const (
	ContextIdentityKey = "identity"
)

// jwtClaims defines the structure we expect in tokens issued by the auth
// service. The subject is the stable user id.
type jwtClaims struct {
	Wallet string        `json:"wallet"`
	Roles  []domain.Role `json:"roles"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the bearer token and stores a domain.Identity in
// the context. Nothing downstream reads identity from the request body.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, "Invalid token")
			}
			return
		}
		if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		id := domain.Identity{Subject: claims.Subject, Roles: claims.Roles}
		if claims.Wallet != "" {
			wallet, err := auth.NormalizeWallet(claims.Wallet)
			if err != nil {
				abortWithError(c, http.StatusUnauthorized, "Token carries an invalid wallet address")
				return
			}
			id.Wallet = wallet
		}

		c.Set(ContextIdentityKey, id)
		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// RequireReviewer rejects callers without moderation authority before any
// handler runs, so nothing about submission existence leaks to them.
// Must run AFTER AuthMiddleware.
func RequireReviewer(authz auth.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := getIdentityFromContext(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, "Identity not found in context")
			return
		}
		if !authz.IsReviewer(c.Request.Context(), id) {
			abortWithError(c, http.StatusForbidden, domain.ErrUnauthorized.Error())
			return
		}
		c.Next()
	}
}

// RequireWallet rejects identities that carry no wallet.
func RequireWallet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := getIdentityFromContext(c)
		if err != nil || id.Wallet == "" {
			abortWithError(c, http.StatusForbidden, "A wallet-bound identity is required")
			return
		}
		c.Next()
	}
}

// walletLimiter hands out one token bucket per caller.
type walletLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*bucket
	lastSweep time.Time
	idleAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newWalletLimiter(perMinute, burst int) *walletLimiter {
	if burst < 1 {
		burst = 1
	}
	return &walletLimiter{
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
		idleAfter: 10 * time.Minute,
	}
}

func (l *walletLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.idleAfter {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idleAfter {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// RateLimitMiddleware limits uploads and creates per caller. A non-positive
// perMinute disables it.
// Must run AFTER AuthMiddleware.
func RateLimitMiddleware(perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newWalletLimiter(perMinute, burst)
	return func(c *gin.Context) {
		id, _ := getIdentityFromContext(c)
		key := id.Wallet
		if key == "" {
			key = id.Subject
		}
		if !limiter.allow(key, time.Now()) {
			c.Header("Retry-After", "60")
			abortWithError(c, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}
		c.Next()
	}
}

// Helper function to get the caller identity from context (used by handlers)
func getIdentityFromContext(c *gin.Context) (domain.Identity, error) {
	raw, exists := c.Get(ContextIdentityKey)
	if !exists {
		return domain.Identity{}, errors.New("identity not found in context")
	}
	id, ok := raw.(domain.Identity)
	if !ok {
		return domain.Identity{}, errors.New("invalid identity type in context")
	}
	return id, nil
}

// respondError maps a service error onto an HTTP status by its class so the
// UI can tell "already submitted" apart from "bad input".
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var dup *domain.DuplicateSubmissionError
	if errors.As(err, &dup) {
		body := gin.H{"error": dup.Error(), "code": "duplicate_submission", "bountyId": dup.BountyID}
		if dup.Existing != nil {
			body["existingSubmissionId"] = dup.Existing.ID.Hex()
			body["existingStatus"] = dup.Existing.Status
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
		return
	}

	switch domain.Classify(err) {
	case domain.ClassValidation:
		abortWithError(c, http.StatusBadRequest, err.Error())
	case domain.ClassConflict:
		abortWithError(c, http.StatusConflict, err.Error())
	case domain.ClassAuthorization:
		abortWithError(c, http.StatusForbidden, err.Error())
	case domain.ClassNotFound:
		abortWithError(c, http.StatusNotFound, err.Error())
	case domain.ClassUnavailable:
		logger.Warn("dependency unavailable", "path", c.FullPath(), "error", err)
		abortWithError(c, http.StatusServiceUnavailable, domain.ErrStorageWriteFailed.Error()+", please retry")
	default:
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
