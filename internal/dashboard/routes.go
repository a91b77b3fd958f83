package dashboard

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/generate"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")

	api.GET("/cards", s.handleCardList)
	api.POST("/cards", s.handleCardCreate)
	api.GET("/cards/:id", s.handleCardGet)
	api.PATCH("/cards/:id", s.handleCardUpdate)
	api.DELETE("/cards/:id", s.handleCardDelete)
	api.GET("/cards/:id/markdown", s.handleCardMarkdown)

	api.PUT("/cards/:id/knowledge/:ref", s.handleRef(card.AttachKnowledgeFile))
	api.DELETE("/cards/:id/knowledge/:ref", s.handleRef(card.DetachKnowledgeFile))
	api.PUT("/cards/:id/tags/:ref", s.handleRef(card.AttachTag))
	api.DELETE("/cards/:id/tags/:ref", s.handleRef(card.DetachTag))

	api.POST("/cards/:id/testcases", s.handleTestCaseAdd)
	api.PATCH("/cards/:id/testcases/:tc", s.handleTestCaseUpdate)
	api.DELETE("/cards/:id/testcases/:tc", s.handleTestCaseDelete)

	api.GET("/cards/:id/chat", s.handleChatShow)
	api.POST("/cards/:id/chat/start", s.handleChatStart)
	api.POST("/cards/:id/chat", s.handleChatSend)
	api.DELETE("/cards/:id/chat", s.handleChatReset)

	api.POST("/cards/:id/generate/predev", s.handleGenerate((*generate.Service).PreDev))
	api.POST("/cards/:id/generate/testcases", s.handleGenerate((*generate.Service).TestCases))
	api.POST("/cards/:id/generate/title", s.handleGenerate((*generate.Service).Title))

	api.GET("/knowledge", s.handleKnowledgeList)
	api.POST("/knowledge", s.handleKnowledgeCreate)
	api.GET("/knowledge/:id", s.handleKnowledgeGet)
	api.DELETE("/knowledge/:id", s.handleKnowledgeDelete)

	api.GET("/tags", s.handleTagList)
	api.POST("/tags", s.handleTagCreate)
	api.DELETE("/tags/:id", s.handleTagDelete)

	api.GET("/settings", s.handleSettingsGet)
	api.PUT("/settings", s.handleSettingsUpdate)
	api.DELETE("/settings/prompts", s.handlePromptsReset)

	api.GET("/events", s.handleEvents)
}

func (s *server) handleHealth(c *gin.Context) {
	sqlDB, err := s.store.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// idParam parses a numeric path parameter. On failure it writes a 400 and
// returns false.
func (s *server) idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		s.fail(c, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, c.Param(name)))
		return 0, false
	}
	return uint(id), true
}

// queryID parses an optional numeric query parameter; absent means 0.
func queryID(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return uint(id), nil
}

// bind decodes the JSON body into v. On failure it writes a 400 and
// returns false.
func (s *server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}
