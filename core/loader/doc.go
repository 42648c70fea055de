// Package loader provides the feature loading system of the HTTP API.
//
// Each feature implements the Feature interface, which defines whether it is enabled
// and how it registers its routes.
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The Manager keeps registered features in order and loads the enabled ones via LoadAll.
// The audit, conflicts, poll and integrity features are mounted this way by the start command.
package loader
