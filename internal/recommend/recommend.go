// Package recommend is the boundary to the recommendation collaborator:
// it turns a recognized request plus the configured menu into a ranked
// list of dish suggestions with human-readable reasons.
package recommend

import (
	"context"
	"errors"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/config"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/protocol"
)

// ErrNoRecommendations is returned when the engine produced an empty or
// unusable list. Terminal for the recording cycle.
var ErrNoRecommendations = errors.New("no recommendations produced")

// Recommender produces dish suggestions for one recognized request.
type Recommender interface {
	Recommend(ctx context.Context, request string) ([]protocol.Recommendation, error)
}

// Static serves a fixed list, optionally capped. Used in mock mode and
// tests.
type Static struct {
	Items []protocol.Recommendation
	Err   error
}

func (s Static) Recommend(_ context.Context, _ string) ([]protocol.Recommendation, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Items) == 0 {
		return nil, ErrNoRecommendations
	}
	return s.Items, nil
}

// FromMenu builds canned recommendations straight from the configured
// menu, for running the service without an LLM behind it.
func FromMenu(menu []config.Dish, max int) Static {
	items := make([]protocol.Recommendation, 0, len(menu))
	for _, d := range menu {
		if max > 0 && len(items) >= max {
			break
		}
		reason := d.Description
		if reason == "" {
			reason = "house favourite"
		}
		items = append(items, protocol.Recommendation{ID: d.ID, Name: d.Name, Reason: reason})
	}
	return Static{Items: items}
}
