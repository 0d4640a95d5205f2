package api

import (
	"fmt"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultLayer(l models.Layer) models.Layer {
	if l == "" {
		return models.LayerSemantic
	}
	return l
}

func orDefaultType(t models.MemoryType) models.MemoryType {
	if t == "" {
		return models.TypeExplicit
	}
	return t
}

func capTagsLocal(tags []string, max int) []string {
	if len(tags) > max {
		return tags[:max]
	}
	return tags
}

func fmtValidation(field, message string) error {
	return apperr.NewValidationError(field, message)
}

func crossUserErr() error {
	return fmt.Errorf("%w: memory belongs to a different user", apperr.ErrUnauthorizedCrossUser)
}

// ownerOf reads the user_id field out of a vector-store metadata map.
func ownerOf(metadata map[string]interface{}) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata["user_id"].(string); ok {
		return v
	}
	return ""
}
