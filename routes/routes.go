package routes

import (
	"net/http"

	"product-wizard-service/common/auth"
	"product-wizard-service/controllers"
	"product-wizard-service/middleware"

	"github.com/gin-gonic/gin"
)

// Limiters throttles the endpoints that reach external systems.
type Limiters struct {
	Lookup *middleware.RateLimiter
	Submit *middleware.RateLimiter
}

func passThrough(c *gin.Context) { c.Next() }

func (l *Limiters) lookup() gin.HandlerFunc {
	if l == nil || l.Lookup == nil {
		return passThrough
	}
	return l.Lookup.Middleware()
}

func (l *Limiters) submit() gin.HandlerFunc {
	if l == nil || l.Submit == nil {
		return passThrough
	}
	return l.Submit.Middleware()
}

// RegisterWizardRoutes sets up the admin product wizard.
func RegisterWizardRoutes(r *gin.Engine, verifier *auth.TokenVerifier, wc *controllers.WizardController, rc *controllers.RegistryController, limits *Limiters) {
	wizard := r.Group("/admin/product-wizard")
	wizard.Use(middleware.AuthMiddleware(verifier), middleware.AdminOnly())

	wizard.POST("/sessions", wc.StartSession)

	s := wizard.Group("/sessions/:id")
	{
		s.GET("", wc.GetSession)
		s.DELETE("", wc.CancelSession)
		s.PATCH("/draft", wc.PatchDraft)

		s.POST("/advance", wc.Advance)
		s.POST("/retreat", wc.Retreat)
		s.POST("/jump", wc.JumpTo)
		s.POST("/skip-to-manual", wc.SkipToManual)

		s.POST("/lookup", limits.lookup(), wc.Lookup)
		s.POST("/candidate/accept", wc.AcceptCandidate)
		s.POST("/candidate/reject", wc.RejectCandidate)

		s.POST("/media", wc.AddMedia)
		s.POST("/media/presign", wc.PresignMedia)
		s.DELETE("/media/:index", wc.RemoveMedia)

		s.PUT("/variant-groups", wc.UpsertVariantGroup)
		s.DELETE("/variant-groups/:name", wc.RemoveVariantGroup)

		s.POST("/submit", limits.submit(), wc.Submit)
	}

	if rc != nil {
		reg := wizard.Group("/registry/contributions")
		reg.GET("", rc.ListPending)
		reg.GET("/by-code/:code", rc.GetByCode)
		reg.PATCH("/:id", rc.SetStatus)
	}
}

// RegisterHealthRoutes exposes liveness for the load balancer.
func RegisterHealthRoutes(r *gin.Engine, service string, sessions func() int) {
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "OK", "service": service}
		if sessions != nil {
			body["active_sessions"] = sessions()
		}
		c.JSON(http.StatusOK, body)
	})
}
