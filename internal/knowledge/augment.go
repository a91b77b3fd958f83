package knowledge

import (
	"fmt"
	"strings"

	"github.com/zulandar/devtask/internal/models"
)

const (
	augmentHeader = "Here is some context from my knowledge base. Please use this information as the primary source of truth when answering my request.\n\n"
	augmentFooter = "\n\nNow, here is my original request:\n\n"
)

// Augment prefixes message with one delimited block per file. With no files
// the message is returned unchanged.
func Augment(message string, files []models.KnowledgeFile) string {
	if len(files) == 0 {
		return message
	}
	blocks := make([]string, len(files))
	for i, f := range files {
		blocks[i] = fmt.Sprintf("--- CONTEXT FROM FILE: %s ---\n%s\n--- END OF CONTEXT FROM FILE: %s ---", f.Name, f.Content, f.Name)
	}
	return augmentHeader + strings.Join(blocks, "\n\n") + augmentFooter + message
}
