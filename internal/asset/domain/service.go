package domain

import (
	"context"
	"errors"
	"time"
)

// ResolveOptions controls asset resolution.
type ResolveOptions struct {
	// At is the instant tariff activation is resolved against.
	At time.Time
	// IncludeInactive keeps inactive assets in the result.
	IncludeInactive bool
}

// Service loads client documents from the layered configuration store and
// resolves their canonical asset lists.
type Service interface {
	// LoadClient loads one client document by file name, applying the
	// include layering policy.
	LoadClient(ctx context.Context, file string) (*Client, error)
	// LoadClients loads every client document in the clients directory.
	LoadClients(ctx context.Context) ([]*Client, error)
	// ResolveAssets returns the client's canonical asset list with
	// defaults applied and activated tariffs attached.
	ResolveAssets(ctx context.Context, client *Client, opts ResolveOptions) ([]Asset, error)
}

var (
	ErrClientFileInvalid = errors.New("client_file_invalid")
	ErrIncludeInvalid    = errors.New("client_include_invalid")
)
