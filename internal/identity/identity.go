// Package identity is the seam to the external identity collaborator. The
// messenger never manages credentials; it only needs user projections to
// enrich responses.
package identity

import "context"

type User struct {
	ID          uint   `json:"id"`
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Directory resolves user projections. Missing ids are simply absent from
// the result; callers fall back to a bare id.
type Directory interface {
	Lookup(ctx context.Context, ids []uint) (map[uint]User, error)
}

// StaticDirectory serves projections from a fixed map. Used in tests and in
// deployments where the identity service pushes its user list at startup.
type StaticDirectory struct {
	Users map[uint]User
}

func (d *StaticDirectory) Lookup(_ context.Context, ids []uint) (map[uint]User, error) {
	out := make(map[uint]User, len(ids))
	for _, id := range ids {
		if u, ok := d.Users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
