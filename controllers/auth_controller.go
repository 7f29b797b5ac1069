package controllers

import (
	"net/http"
	"time"

	"budvest_data_service/middleware"
	"budvest_data_service/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthController handles admin authentication
type AuthController struct {
	db      *gorm.DB
	secret  string
	limiter *middleware.LoginLimiter
	now     func() time.Time
}

// NewAuthController creates a new auth controller. limiter may be nil.
func NewAuthController(db *gorm.DB, jwtSecret string, limiter *middleware.LoginLimiter) *AuthController {
	return &AuthController{db: db, secret: jwtSecret, limiter: limiter, now: time.Now}
}

// LoginRequest is the admin login payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies admin credentials and issues a bearer token
// POST /api/v1/admin/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	var admin models.AdminUser
	if err := ac.db.Where("username = ? AND is_active = ?", req.Username, true).First(&admin).Error; err != nil {
		logrus.Warnf("Admin login failed for user %s: user not found", req.Username)
		ac.record(c, false)
		errorResponse(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if !admin.CheckPassword(req.Password) {
		logrus.Warnf("Admin login failed for user %s: invalid password", req.Username)
		ac.record(c, false)
		errorResponse(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	now := ac.now()
	token, err := middleware.GenerateToken(ac.secret, admin.ID, admin.Username, now)
	if err != nil {
		logrus.WithError(err).Error("Failed to issue admin token")
		errorResponse(c, http.StatusServiceUnavailable, "Admin login is not configured")
		return
	}

	ac.record(c, true)
	if err := ac.db.Model(&admin).Update("last_login_at", now).Error; err != nil {
		logrus.Warnf("Failed to update last login for %s: %v", admin.Username, err)
	}
	logrus.Infof("Admin %s logged in", admin.Username)

	successResponse(c, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": now.Add(middleware.AdminTokenTTL).Format(time.RFC3339),
	}, nil)
}

func (ac *AuthController) record(c *gin.Context, success bool) {
	if ac.limiter != nil {
		ac.limiter.RecordAttempt(c.ClientIP(), success)
	}
}
