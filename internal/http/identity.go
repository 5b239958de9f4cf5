package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/example/ride-exchange/internal/models"
)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// IdentityProvider projects the caller's identity out of a request.
// Authentication itself happens upstream; this server only consumes the
// result.
type IdentityProvider interface {
	FromRequest(r *http.Request) (models.Identity, error)
}

// HeaderIdentity trusts identity headers injected by the auth gateway in
// front of this service: X-User-ID, X-User-Role and, for drivers,
// X-Vehicle-Class.
type HeaderIdentity struct{}

func (HeaderIdentity) FromRequest(r *http.Request) (models.Identity, error) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		return models.Identity{}, ErrUnauthenticated
	}
	role := models.Role(r.Header.Get("X-User-Role"))
	switch role {
	case models.RoleRider:
		return models.Identity{ID: id, Role: role}, nil
	case models.RoleDriver:
		class := r.Header.Get("X-Vehicle-Class")
		if class == "" {
			return models.Identity{}, fmt.Errorf("driver %s has no vehicle class", id)
		}
		return models.Identity{ID: id, Role: role, VehicleClass: class}, nil
	default:
		return models.Identity{}, fmt.Errorf("unknown role %q", role)
	}
}
