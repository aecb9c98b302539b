package driver

import (
	userDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/user"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

// Driver is a user with role DRIVER.
type Driver struct {
	ID                string                               `json:"_id"`
	Name              string                               `json:"name"`
	Email             string                               `json:"email"`
	AssignedVehicleID reference.Reference[vehicle.Vehicle] `json:"assignedVehicleId"`
}

func (d Driver) RefID() string {
	return d.ID
}

func FromDataModel(u *userDatamodel.User) *Driver {
	return &Driver{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		AssignedVehicleID: reference.FromPtr[vehicle.Vehicle](u.AssignedVehicleID),
	}
}

func ToDataModel(d *Driver) *userDatamodel.User {
	return &userDatamodel.User{
		ID:                d.ID,
		Name:              d.Name,
		Email:             d.Email,
		Role:              userDatamodel.RoleDriver,
		AssignedVehicleID: d.AssignedVehicleID.IDPtr(),
		IsActive:          true,
	}
}

func FromDataModelSlice(users []*userDatamodel.User) []Driver {
	result := make([]Driver, len(users))
	for i, u := range users {
		result[i] = *FromDataModel(u)
	}
	return result
}
