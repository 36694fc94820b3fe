package service

import "github.com/ripple-community/pebs-api/internal/domain"

// Activity statuses follow the simple lifecycle: active activities can be
// completed or cancelled; both end states are terminal.
var activityTransitions = map[string]map[string]struct{}{
	domain.ActivityStatusActive: {
		domain.ActivityStatusCompleted: {},
		domain.ActivityStatusCancelled: {},
	},
	domain.ActivityStatusCompleted: {},
	domain.ActivityStatusCancelled: {},
}

func canTransitionActivity(current, next string) bool {
	nextStates, ok := activityTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}
