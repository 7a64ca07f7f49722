package middleware

import (
	"net/http"
	"runtime/debug"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler recovers panics and renders errors attached with c.Error
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.handleGinErrors(c)
		}
	})
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	stack := string(debug.Stack())

	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      stack,
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	}).Error("Panic recovered")

	response := models.NewErrorResponse(
		models.ErrorTypeInternal,
		"Internal server error",
		models.CodeInternalServerError,
		c.GetString("request_id"),
	)
	if eh.environment == "development" {
		response.WithDetails("panic", err).WithDetails("stack", stack)
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, response)
}

func (eh *ErrorHandler) handleGinErrors(c *gin.Context) {
	lastError := c.Errors.Last()
	if lastError == nil {
		return
	}

	for _, ginErr := range c.Errors {
		fields := logrus.Fields{
			"error":      ginErr.Err.Error(),
			"request_id": c.GetString("request_id"),
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
		}
		if serviceErr, ok := utils.GetServiceError(ginErr.Err); ok && serviceErr.StatusCode < http.StatusInternalServerError {
			eh.logger.WithFields(fields).Warn("Client error")
		} else {
			eh.logger.WithFields(fields).Error("Server error")
		}
	}

	utils.HandleServiceError(c, lastError.Err)
}
