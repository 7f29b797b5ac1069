package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse represents a standardized API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Meta      *MetaInfo   `json:"meta,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// MetaInfo contains result metadata
type MetaInfo struct {
	Total int    `json:"total"`
	Limit int    `json:"limit,omitempty"`
	Query string `json:"query,omitempty"`
}

func successResponse(c *gin.Context, data interface{}, meta *MetaInfo) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Data:      data,
		Meta:      meta,
		Timestamp: timestamp(),
	})
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Success:   false,
		Error:     message,
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

// queryLimit parses ?limit=, falling back to def on junk
func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

// querySymbols parses ?symbols=a,b,c
func querySymbols(c *gin.Context) []string {
	raw := c.Query("symbols")
	if raw == "" {
		return nil
	}
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
