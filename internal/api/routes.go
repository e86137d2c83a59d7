package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"alcyxob/nutrition-onboarding/internal/config"
	"alcyxob/nutrition-onboarding/internal/metrics"
	"alcyxob/nutrition-onboarding/internal/service"
)

// SetupRoutes registers the onboarding API. The router is expected to carry
// gin.Recovery and requestid.New already. m may be nil.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	onboardingService service.OnboardingService,
	m *metrics.Metrics,
	rateLimit config.RateLimitConfig,
	log zerolog.Logger,
) {
	onboardingHandler := NewOnboardingHandler(onboardingService, log)

	router.Use(RequestLogger(log, m))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	if rateLimit.Enabled {
		burst := rateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		protected.Use(RateLimitMiddleware(rateLimit.RequestsPerSec, burst))
	}
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "email": c.GetString(ContextUserEmailKey)})
		})

		onboardingGroup := protected.Group("/onboarding")
		{
			onboardingGroup.GET("", onboardingHandler.GetState)
			onboardingGroup.PATCH("/profile", onboardingHandler.UpdateProfile)
			onboardingGroup.POST("/next", onboardingHandler.Next)
			onboardingGroup.POST("/back", onboardingHandler.Back)
			onboardingGroup.POST("/skip", onboardingHandler.Skip)
			onboardingGroup.PUT("/step", onboardingHandler.JumpTo)
			onboardingGroup.POST("/complete", onboardingHandler.Complete)
			onboardingGroup.GET("/preview", onboardingHandler.Preview)
		}
	}
}
