package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/service"
)

// OnboardingHandler exposes the onboarding wizard over HTTP.
type OnboardingHandler struct {
	onboardingService service.OnboardingService
	log               zerolog.Logger
}

// NewOnboardingHandler creates a new OnboardingHandler.
func NewOnboardingHandler(onboardingService service.OnboardingService, log zerolog.Logger) *OnboardingHandler {
	return &OnboardingHandler{onboardingService: onboardingService, log: log}
}

// --- Request/Response Structs ---

type JumpToStepRequest struct {
	Step int `json:"step" binding:"required"`
}

type StepResponse struct {
	ID     domain.StepID `json:"id"`
	Number int           `json:"number"`
	Title  string        `json:"title"`
}

type OnboardingStateResponse struct {
	Step        StepResponse          `json:"step"`
	CurrentStep int                   `json:"currentStep"`
	TotalSteps  int                   `json:"totalSteps"`
	Profile     domain.UserProfile    `json:"profile"`
	Derived     domain.DerivedMetrics `json:"derived"`
	Completed   bool                  `json:"completed"`
}

type CompletionResponse struct {
	State       OnboardingStateResponse `json:"state"`
	UserID      string                  `json:"userId,omitempty"`
	CompletedAt time.Time               `json:"completedAt"`
	Offline     bool                    `json:"offline"`
}

// --- Handler Methods ---

// GetState godoc
// @Summary Get onboarding state
// @Description Returns the current step, the draft profile and the metrics derived from it.
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} OnboardingStateResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 503 {object} gin.H "Local storage unavailable"
// @Router /onboarding [get]
func (h *OnboardingHandler) GetState(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	st, err := h.onboardingService.State(c.Request.Context(), id)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapStateToResponse(st))
}

// UpdateProfile godoc
// @Summary Update the draft profile
// @Description Merges the given fields into the draft. Imperial input is converted to metric.
// @Description With validate=true the merged profile must satisfy the current step.
// @Tags Onboarding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param validate query bool false "Validate against the current step"
// @Param patch body domain.ProfilePatch true "Fields to update"
// @Success 200 {object} OnboardingStateResponse
// @Failure 400 {object} gin.H "Malformed body"
// @Failure 422 {object} gin.H "Step validation failed"
// @Failure 503 {object} gin.H "Draft could not be persisted"
// @Router /onboarding/profile [patch]
func (h *OnboardingHandler) UpdateProfile(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	var patch domain.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	validate, _ := strconv.ParseBool(c.DefaultQuery("validate", "false"))

	st, err := h.onboardingService.UpdateProfile(c.Request.Context(), id, patch, validate)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapStateToResponse(st))
}

// Next godoc
// @Summary Advance to the next step
// @Description Validates the current step. On the last step this completes onboarding.
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} OnboardingStateResponse
// @Failure 422 {object} gin.H "Step validation failed"
// @Failure 502 {object} gin.H "Backend sync failed"
// @Failure 504 {object} gin.H "Backend sync timed out"
// @Router /onboarding/next [post]
func (h *OnboardingHandler) Next(c *gin.Context) {
	h.transition(c, h.onboardingService.Next)
}

// Back godoc
// @Summary Go back one step
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} OnboardingStateResponse
// @Router /onboarding/back [post]
func (h *OnboardingHandler) Back(c *gin.Context) {
	h.transition(c, h.onboardingService.Back)
}

// Skip godoc
// @Summary Skip to the summary step
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} OnboardingStateResponse
// @Router /onboarding/skip [post]
func (h *OnboardingHandler) Skip(c *gin.Context) {
	h.transition(c, h.onboardingService.Skip)
}

// JumpTo godoc
// @Summary Jump to a step
// @Tags Onboarding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param step body JumpToStepRequest true "1-based step number"
// @Success 200 {object} OnboardingStateResponse
// @Failure 400 {object} gin.H "Step out of range"
// @Router /onboarding/step [put]
func (h *OnboardingHandler) JumpTo(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	var req JumpToStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	st, err := h.onboardingService.JumpTo(c.Request.Context(), id, req.Step)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapStateToResponse(st))
}

// Complete godoc
// @Summary Complete onboarding
// @Description Validates the whole draft and syncs it to the user record. Safe to retry.
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CompletionResponse
// @Failure 422 {object} gin.H "Profile validation failed"
// @Failure 502 {object} gin.H "Backend sync failed"
// @Failure 504 {object} gin.H "Backend sync timed out"
// @Router /onboarding/complete [post]
func (h *OnboardingHandler) Complete(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	st, res, err := h.onboardingService.Complete(c.Request.Context(), id)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	resp := CompletionResponse{
		State:       MapStateToResponse(st),
		CompletedAt: res.CompletedAt,
		Offline:     res.Offline,
	}
	if res.Record != nil && !res.Record.ID.IsZero() {
		resp.UserID = res.Record.ID.Hex()
	}
	c.JSON(http.StatusOK, resp)
}

// Preview godoc
// @Summary Preview derived metrics
// @Description Computes calories, macros and projections from the current draft without saving.
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.DerivedMetrics
// @Router /onboarding/preview [get]
func (h *OnboardingHandler) Preview(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	d, err := h.onboardingService.Preview(c.Request.Context(), id)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// MapStateToResponse converts a service State to its DTO.
func MapStateToResponse(st service.State) OnboardingStateResponse {
	return OnboardingStateResponse{
		Step:        StepResponse{ID: st.Step.ID, Number: st.Step.Number, Title: st.Step.Title},
		CurrentStep: st.CurrentStep,
		TotalSteps:  st.TotalSteps,
		Profile:     st.Profile,
		Derived:     st.Derived,
		Completed:   st.Completed,
	}
}

func (h *OnboardingHandler) transition(c *gin.Context, move func(ctx context.Context, id service.Identity) (service.State, error)) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	st, err := move(c.Request.Context(), id)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapStateToResponse(st))
}

func (h *OnboardingHandler) identity(c *gin.Context) (service.Identity, bool) {
	uid, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Failed to get user ID from token")
		return service.Identity{}, false
	}
	return service.Identity{UID: uid, Email: c.GetString(ContextUserEmailKey)}, true
}

// respondWithError maps service errors onto HTTP status codes.
func (h *OnboardingHandler) respondWithError(c *gin.Context, err error) {
	var (
		validationErr  *domain.ValidationError
		persistenceErr *domain.PersistenceError
		syncErr        *domain.SyncError
	)

	switch {
	case errors.As(err, &validationErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": validationErr.Err.Error(),
			"step":  validationErr.Step,
		})
	case errors.Is(err, domain.ErrStepOutOfRange):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrMissingIdentity), errors.Is(err, domain.ErrNotAuthenticated):
		abortWithError(c, http.StatusUnauthorized, err.Error())
	case errors.As(err, &syncErr):
		h.log.Warn().Err(err).Str("op", syncErr.Op).Msg("backend sync failed")
		code := http.StatusBadGateway
		if syncErr.Timeout() {
			code = http.StatusGatewayTimeout
		}
		c.AbortWithStatusJSON(code, gin.H{
			"error":     "Could not save your profile, please try again",
			"retryable": syncErr.Retryable,
		})
	case errors.As(err, &persistenceErr):
		h.log.Error().Err(err).Msg("local storage failure")
		abortWithError(c, http.StatusServiceUnavailable, "Onboarding progress could not be saved")
	default:
		h.log.Error().Err(err).Msg("unexpected onboarding error")
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
