// Package modules lists the feature modules bundled with the server.
package modules

import (
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/ai"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/auth"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/chat"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/events"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/upload"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/users"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
)

// Default returns the six bundled modules. Their prefixes are disjoint, so
// mount order does not matter.
func Default() []server.Module {
	return []server.Module{
		auth.Module(),
		events.Module(),
		chat.Module(),
		ai.Module(),
		upload.Module(),
		users.Module(),
	}
}
