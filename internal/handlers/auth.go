package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-credgate/credgate/internal/credentials"
	"github.com/go-credgate/credgate/internal/metrics"
	"github.com/go-credgate/credgate/internal/source"

	"github.com/gin-gonic/gin"
)

// CheckRequest is the JSON body of POST /auth/check.
type CheckRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthHandler struct {
	authenticator source.Authenticator
	metrics       metrics.Recorder
}

func NewAuthHandler(a source.Authenticator, m metrics.Recorder) *AuthHandler {
	return &AuthHandler{
		authenticator: a,
		metrics:       m,
	}
}

// Check evaluates a credential pair against the configured source and
// returns the decision. Backend failures abort the call with a gateway
// error; they are never reported as a denied decision.
func (h *AuthHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "body must be JSON with username and password",
		})
		return
	}
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "username is required",
		})
		return
	}

	kind := string(h.authenticator.Kind())
	start := time.Now()

	decision, err := h.authenticator.Check(req.Username, req.Password)
	if err != nil {
		h.metrics.RecordSourceError(kind)
		log.Printf("[Auth] Source failure for user=%s source=%s: %v", req.Username, kind, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "source_unavailable",
			"message": "credential source failed; no decision was made",
		})
		return
	}

	h.metrics.RecordDecision(kind, decisionOutcome(decision), time.Since(start))
	c.JSON(http.StatusOK, decision)
}

// decisionOutcome classifies a decision for metrics labelling.
func decisionOutcome(d credentials.Decision) string {
	switch {
	case d.UserInfo == nil:
		return "unknown_user"
	case d.Result:
		return "ok"
	case d.Expired:
		return "expired"
	case !d.Authorized:
		return "unauthorized"
	default:
		return "bad_password"
	}
}
