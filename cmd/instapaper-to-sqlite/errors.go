package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/credentials"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/instapaper"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/sync"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/ui"
)

// errorMessage turns a command error into the line shown to the user.
func errorMessage(err error) string {
	var authErr *instapaper.AuthError

	switch {
	case errors.Is(err, credentials.ErrMissingCredentials):
		return ui.RenderError("Cannot find authentication data, please run `instapaper-to-sqlite auth`!")
	case errors.As(err, &authErr):
		reason := fmt.Sprintf("HTTP %d", authErr.StatusCode)
		if authErr.Message != "" {
			reason += ": " + authErr.Message
		}
		return ui.RenderError(fmt.Sprintf("Authentication failed (%s), please run `instapaper-to-sqlite auth`!", reason))
	case errors.Is(err, sync.ErrNoFolders):
		return ui.RenderError("No folders found, please run `instapaper-to-sqlite folders DB_PATH` first!")
	case errors.Is(err, ui.ErrAborted), errors.Is(err, context.Canceled):
		return ui.RenderWarn("Aborted.")
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// exitCode is 0 on success and 1 for every failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
