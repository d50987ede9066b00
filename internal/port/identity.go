package port

import "context"

type Identity interface {
	// Email resolves the user's registered contact address
	Email(ctx context.Context, userID string) (string, error)
}
