package query

import (
	"encoding/json"
	"fmt"

	"github.com/0x5457/repograph/internal/models"
)

// clone deep-copies idx through its persisted form.
func clone(idx *models.Index) (*models.Index, error) {
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, fmt.Errorf("copy index: %w", err)
	}
	var out models.Index
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("copy index: %w", err)
	}
	return &out, nil
}
