package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fenggwsx/SportChat/internal/api"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sendMessageRequest struct {
	Message  string `json:"message"`
	Sport    string `json:"sport"`
	ThreadID *int64 `json:"thread_id"`
}

type updateMessageRequest struct {
	Message string `json:"message"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type cleanupRequest struct {
	DaysOld int `json:"days_old" binding:"gte=0"`
}

// Handler adapts api.Service to gin. Operation results are always written
// with 200; the body's success flag carries the outcome.
type Handler struct {
	svc *api.Service
}

func NewHandler(svc *api.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.Register(c.Request.Context(), req.Username, req.Password))
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.Login(c.Request.Context(), req.Username, req.Password))
}

func (h *Handler) Health(c *gin.Context) {
	res := h.svc.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, res)
}

func (h *Handler) AppConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetAppConfig())
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetUserInfo(c.Request.Context(), getClaims(c).UserID))
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.ChangePassword(c.Request.Context(), getClaims(c).UserID, req.CurrentPassword, req.NewPassword))
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetUserStats(c.Request.Context(), getClaims(c).UserID))
}

func (h *Handler) Export(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ExportUserData(c.Request.Context(), getClaims(c).UserID))
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.SendMessage(c.Request.Context(), getClaims(c).UserID, req.Message, req.Sport, req.ThreadID))
}

func (h *Handler) Conversations(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetConversationsGrouped(c.Request.Context(), getClaims(c).UserID, c.Query("sport")))
}

func (h *Handler) Search(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.SearchConversations(c.Request.Context(), getClaims(c).UserID, c.Query("q"), c.Query("sport")))
}

func (h *Handler) UpdateConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateMessageRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.UpdateConversation(c.Request.Context(), id, req.Message, getClaims(c).UserID))
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.DeleteConversation(c.Request.Context(), id, getClaims(c).UserID))
}

func (h *Handler) DeleteThread(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.DeleteThread(c.Request.Context(), id, getClaims(c).UserID))
}

func (h *Handler) Cleanup(c *gin.Context) {
	var req cleanupRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.CleanupOldData(c.Request.Context(), req.DaysOld))
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		log.Debug().Err(err).Str("component", "http").Str("path", c.FullPath()).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, api.Result{Error: "invalid request body"})
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.Result{Error: "invalid id"})
		return 0, false
	}
	return id, true
}
