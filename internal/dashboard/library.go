package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/devtask/internal/knowledge"
	"github.com/zulandar/devtask/internal/models"
	"github.com/zulandar/devtask/internal/tag"
)

type knowledgeRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// knowledgeSummary is a knowledge file without its content.
type knowledgeSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

func summarize(files []models.KnowledgeFile) []knowledgeSummary {
	out := make([]knowledgeSummary, len(files))
	for i, f := range files {
		out[i] = knowledgeSummary{ID: f.ID, Name: f.Name, Bytes: len(f.Content)}
	}
	return out
}

func (s *server) handleKnowledgeList(c *gin.Context) {
	files, err := knowledge.List(c.Request.Context(), s.store)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(files))
}

func (s *server) handleKnowledgeCreate(c *gin.Context) {
	var req knowledgeRequest
	if !s.bind(c, &req) {
		return
	}
	f, err := knowledge.Create(c.Request.Context(), s.store, req.Name, req.Content, s.maxFileBytes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (s *server) handleKnowledgeGet(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	f, err := knowledge.Get(c.Request.Context(), s.store, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *server) handleKnowledgeDelete(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	if err := knowledge.Delete(c.Request.Context(), s.store, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) handleTagList(c *gin.Context) {
	tags, err := tag.List(c.Request.Context(), s.store)
	if err != nil {
		s.fail(c, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	c.JSON(http.StatusOK, tags)
}

func (s *server) handleTagCreate(c *gin.Context) {
	var req tagRequest
	if !s.bind(c, &req) {
		return
	}
	t, err := tag.Create(c.Request.Context(), s.store, req.Name, req.Color)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *server) handleTagDelete(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	if err := tag.Delete(c.Request.Context(), s.store, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
