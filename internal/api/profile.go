package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dietchain/internal/profile"
)

// GetProfile returns the session's saved profile.
func (h *Handler) GetProfile(c *gin.Context) {
	sess := currentSession(c)
	p, err := h.Profiles.Get(c.Request.Context(), sess.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if p == nil {
		h.fail(c, notFound("profile"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// SaveProfile validates and stores the session's profile. Runs already in
// flight keep the profile they started with.
func (h *Handler) SaveProfile(c *gin.Context) {
	var p profile.UserProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		h.fail(c, badRequest("invalid profile body: %s", err))
		return
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		h.fail(c, err)
		return
	}

	sess := currentSession(c)
	if err := h.Profiles.Save(c.Request.Context(), sess.ID, p); err != nil {
		h.fail(c, err)
		return
	}
	requestLogger(c).Info().Str("diet_type", string(p.DietType)).Int("allergies", len(p.Allergies)).Msg("profile saved")
	c.JSON(http.StatusOK, p)
}

// DeleteProfile removes the session's profile.
func (h *Handler) DeleteProfile(c *gin.Context) {
	if err := h.Profiles.Delete(c.Request.Context(), currentSession(c).ID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
