// Package http exposes the local control API: a small gin surface for
// driving the agent (mute, share, admissions, chat) and reading
// meeting state.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/app/orch"
	"github.com/keulen/huddle/internal/config"
	"github.com/keulen/huddle/internal/domain"
)

func SetupRouter(cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Int("port", cfg.ControlPort).Msg("router setup")

	api := r.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Status())
	})

	api.GET("/participants", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Status().Participants)
	})

	api.GET("/pending", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Status().Pending)
	})

	api.GET("/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Messages())
	})

	api.POST("/chat", func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		o.SendChatMessage(req.Text)
		c.Status(http.StatusAccepted)
	})

	api.POST("/chat/focus", func(c *gin.Context) {
		var req struct {
			Focused bool `json:"focused"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		o.SetChatFocused(req.Focused)
		c.Status(http.StatusAccepted)
	})

	controls := api.Group("/controls")
	controls.POST("/mic", func(c *gin.Context) {
		o.ToggleMic()
		c.Status(http.StatusAccepted)
	})
	controls.POST("/camera", func(c *gin.Context) {
		o.ToggleCam()
		c.Status(http.StatusAccepted)
	})
	controls.POST("/screen", func(c *gin.Context) {
		o.ToggleScreenShare()
		c.Status(http.StatusAccepted)
	})

	api.POST("/admissions/:id/admit", func(c *gin.Context) {
		o.Admit(domain.ParticipantID(c.Param("id")))
		c.Status(http.StatusAccepted)
	})
	api.POST("/admissions/:id/deny", func(c *gin.Context) {
		o.Deny(domain.ParticipantID(c.Param("id")))
		c.Status(http.StatusAccepted)
	})

	api.POST("/participants/:id/kick", func(c *gin.Context) {
		o.Kick(domain.ParticipantID(c.Param("id")))
		c.Status(http.StatusAccepted)
	})
	api.POST("/participants/:id/permissions", func(c *gin.Context) {
		var upd domain.PermissionUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		o.Grant(domain.ParticipantID(c.Param("id")), upd)
		c.Status(http.StatusAccepted)
	})

	api.POST("/focus/:id", func(c *gin.Context) {
		o.Focus(domain.ParticipantID(c.Param("id")))
		c.Status(http.StatusAccepted)
	})

	api.POST("/leave", func(c *gin.Context) {
		o.Leave()
		c.Status(http.StatusAccepted)
	})

	return r
}
