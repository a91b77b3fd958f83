package dashboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
	"github.com/zulandar/devtask/internal/tag"
)

type createCardRequest struct {
	Title string `json:"title"`
}

// updateCardRequest carries the editable card fields. Knowledge file and tag
// sets change through the attach/detach routes, which check existence.
type updateCardRequest struct {
	Title          *string                `json:"title"`
	Status         *string                `json:"status"`
	Requirement    *string                `json:"requirement"`
	ReferenceLink  *string                `json:"referenceLink"`
	Spec           *string                `json:"spec"`
	PreDevAnalysis *models.PreDevAnalysis `json:"preDevAnalysis"`
}

func (r updateCardRequest) patch() card.Patch {
	return card.Patch{
		Title:          r.Title,
		Status:         r.Status,
		Requirement:    r.Requirement,
		ReferenceLink:  r.ReferenceLink,
		Spec:           r.Spec,
		PreDevAnalysis: r.PreDevAnalysis,
	}
}

type testCaseRequest struct {
	Description    string `json:"description"`
	Input          string `json:"input"`
	ExpectedResult string `json:"expectedResult"`
}

type testCasePatchRequest struct {
	Description    *string `json:"description"`
	Input          *string `json:"input"`
	ExpectedResult *string `json:"expectedResult"`
	Status         *string `json:"status"`
}

func (s *server) handleCardList(c *gin.Context) {
	f, err := cardFilters(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	cards, err := card.List(c.Request.Context(), s.store, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	if cards == nil {
		cards = []models.Card{}
	}
	c.JSON(http.StatusOK, cards)
}

func cardFilters(c *gin.Context) (card.ListFilters, error) {
	f := card.ListFilters{Status: c.Query("status")}
	var err error
	if f.TagID, err = queryID(c, "tag"); err != nil {
		return f, err
	}
	if f.KnowledgeFileID, err = queryID(c, "knowledgeFile"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *server) handleCardCreate(c *gin.Context) {
	var req createCardRequest
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}
	created, err := card.Create(c.Request.Context(), s.store, req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *server) handleCardGet(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	got, err := card.Get(c.Request.Context(), s.store, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (s *server) handleCardUpdate(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	var req updateCardRequest
	if !s.bind(c, &req) {
		return
	}
	updated, err := card.Update(c.Request.Context(), s.store, id, req.patch())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *server) handleCardDelete(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	if err := card.Delete(c.Request.Context(), s.store, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) handleCardMarkdown(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	got, err := card.Get(ctx, s.store, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	tags, err := tag.ForCard(ctx, s.store, got)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(card.Markdown(got, tags)))
}

type refFunc func(ctx context.Context, s *db.Store, cardID, refID uint) (*models.Card, error)

// handleRef adapts an attach or detach operation to a route with :id and
// :ref parameters.
func (s *server) handleRef(fn refFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.idParam(c, "id")
		if !ok {
			return
		}
		ref, ok := s.idParam(c, "ref")
		if !ok {
			return
		}
		updated, err := fn(c.Request.Context(), s.store, id, ref)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func (s *server) handleTestCaseAdd(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	var req testCaseRequest
	if !s.bind(c, &req) {
		return
	}
	updated, tc, err := card.AddTestCase(c.Request.Context(), s.store, id, req.Description, req.Input, req.ExpectedResult)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"card": updated, "testCase": tc})
}

func (s *server) handleTestCaseUpdate(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	var req testCasePatchRequest
	if !s.bind(c, &req) {
		return
	}
	p := card.TestCasePatch{
		Description:    req.Description,
		Input:          req.Input,
		ExpectedResult: req.ExpectedResult,
		Status:         req.Status,
	}
	updated, err := card.UpdateTestCase(c.Request.Context(), s.store, id, c.Param("tc"), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *server) handleTestCaseDelete(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	updated, err := card.DeleteTestCase(c.Request.Context(), s.store, id, c.Param("tc"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
