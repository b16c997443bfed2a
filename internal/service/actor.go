package service

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
)

// Actor identifies who is calling a service operation, as established by the auth middleware.
type Actor struct {
	ID   primitive.ObjectID
	Role domain.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// canManagePlan reports whether the actor may act on a plan owned by trainerID.
func (a Actor) canManagePlan(trainerID primitive.ObjectID) bool {
	return a.IsAdmin() || a.ID == trainerID
}

// canManageClient reports whether the actor may act on the given client.
func (a Actor) canManageClient(client *domain.User) bool {
	return a.IsAdmin() || client.IsManagedBy(a.ID)
}
