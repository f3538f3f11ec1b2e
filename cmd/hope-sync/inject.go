package main

import (
	"fmt"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/routes/businessarea"
	"github.com/unicef/hope-sub007/pkg/store"
)

// registerDependencies fills the default container the route handlers
// resolve their services from.
func registerDependencies(a *app, trigger businessarea.Trigger) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	ectoinject.RegisterInstance[ectologger.Logger](container, a.logger)
	ectoinject.RegisterInstance[store.Store](container, a.store)
	ectoinject.RegisterInstance[businessarea.JobRunner](container, a.runner)
	ectoinject.RegisterInstance[businessarea.Trigger](container, trigger)
	return nil
}
