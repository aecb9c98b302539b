package vehicle

import (
	vehicleDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/vehicle"
)

type Vehicle struct {
	ID              string `json:"_id"`
	Make            string `json:"make"`
	Model           string `json:"model"`
	Year            int    `json:"year"`
	LicensePlate    string `json:"licensePlate"`
	CurrentOdometer int64  `json:"currentOdometer"`
}

func (v Vehicle) RefID() string {
	return v.ID
}

// DisplayName renders e.g. "Ford Transit (AB-123-CD)".
func (v Vehicle) DisplayName() string {
	if v.LicensePlate == "" {
		return v.Make + " " + v.Model
	}
	return v.Make + " " + v.Model + " (" + v.LicensePlate + ")"
}

func ToDataModel(v *Vehicle) *vehicleDatamodel.Vehicle {
	return &vehicleDatamodel.Vehicle{
		ID:              v.ID,
		Make:            v.Make,
		Model:           v.Model,
		Year:            v.Year,
		LicensePlate:    v.LicensePlate,
		CurrentOdometer: v.CurrentOdometer,
	}
}

func FromDataModel(v *vehicleDatamodel.Vehicle) *Vehicle {
	return &Vehicle{
		ID:              v.ID,
		Make:            v.Make,
		Model:           v.Model,
		Year:            v.Year,
		LicensePlate:    v.LicensePlate,
		CurrentOdometer: v.CurrentOdometer,
	}
}
