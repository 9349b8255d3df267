package snapshotv1

import "context"

//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=snapshotv1_mock

// Store persists and restores engine snapshots.
type Store interface {
	Save(ctx context.Context, snapshot *AllOrdersSnapshot) error
	// Load returns nil without error when no snapshot exists yet.
	Load(ctx context.Context) (*AllOrdersSnapshot, error)
}
