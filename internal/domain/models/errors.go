package models

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable indicates the on-device queue store could not be opened.
	ErrStorageUnavailable = errors.New("queue storage unavailable")

	// ErrDuplicateRemoteRecord signals the remote store already holds the day
	// record for (business, date). Callers treat it as a successful commit.
	ErrDuplicateRemoteRecord = errors.New("remote record already exists")

	// ErrTransientSubmission wraps network and remote failures that leave the
	// entry queued for the next drain.
	ErrTransientSubmission = errors.New("transient submission failure")

	// ErrInvalidEntry indicates an entry that the remote store can never accept.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrReferenceConfigNotFound indicates nothing is cached for the business.
	ErrReferenceConfigNotFound = errors.New("reference config not cached")

	// ErrSyncInProgress is returned when a drain is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline is returned when a drain is requested without connectivity.
	ErrOffline = errors.New("device is offline")
)

func invalidEntry(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidEntry, reason)
}
