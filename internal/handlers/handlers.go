// Package handlers contains the HTTP handlers for the API.
package handlers

import (
	"github.com/treehole/backend/internal/auth"
	"github.com/treehole/backend/internal/notify"
)

// Handlers bundles the dependencies the HTTP surface needs.
type Handlers struct {
	auth   *auth.Service
	store  notify.Store
	notify *notify.Service
}

// New creates a handlers instance.
func New(authService *auth.Service, store notify.Store, notifyService *notify.Service) *Handlers {
	return &Handlers{
		auth:   authService,
		store:  store,
		notify: notifyService,
	}
}
