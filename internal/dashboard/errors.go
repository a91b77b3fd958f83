package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/clarify"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/generate"
	"github.com/zulandar/devtask/internal/knowledge"
	"github.com/zulandar/devtask/internal/settings"
	"github.com/zulandar/devtask/internal/tag"
	"go.uber.org/zap"
)

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

var validationErrors = []error{
	errBadRequest,
	card.ErrInvalidStatus,
	card.ErrInvalidTestCaseStatus,
	knowledge.ErrTooLarge,
	knowledge.ErrNameRequired,
	tag.ErrInvalidColor,
	tag.ErrNameRequired,
	clarify.ErrEmptyRequirement,
	clarify.ErrEmptyMessage,
	generate.ErrSpecRequired,
	generate.ErrRequirementRequired,
	settings.ErrUnknownProvider,
	settings.ErrInvalidTemperature,
	settings.ErrUnknownPrompt,
}

var conflictErrors = []error{
	db.ErrDuplicateName,
	clarify.ErrDialogueCompleted,
	clarify.ErrDialogueActive,
	clarify.ErrNotStarted,
	clarify.ErrStaleTurn,
}

// statusOf maps an operation error to an HTTP status.
func statusOf(err error) int {
	var aerr *ai.Error
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, validationErrors):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrCredentialMissing):
		return http.StatusPreconditionFailed
	case errors.As(err, &aerr):
		return http.StatusBadGateway
	case errors.Is(err, db.ErrStoreUnavailable), errors.Is(err, db.ErrMigrationFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// message returns the text shown to the client. AI errors carry their own
// user-facing text, so the wrapping prefixes are dropped.
func message(err error) string {
	var aerr *ai.Error
	if errors.As(err, &aerr) {
		return aerr.Error()
	}
	return err.Error()
}

// fail writes err as a JSON error body.
func (s *server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message(err)})
}
