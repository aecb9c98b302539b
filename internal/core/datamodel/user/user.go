package user

import "time"

const RoleDriver = "DRIVER"

// User rows back the driver directory; drivers are users with role DRIVER.
type User struct {
	ID                string    `gorm:"primaryKey;column:id" db:"id"`
	Email             string    `gorm:"column:email;uniqueIndex;not null" db:"email"`
	Name              string    `gorm:"column:name;not null" db:"name"`
	Role              string    `gorm:"column:role;not null;index" db:"role"`
	AssignedVehicleID *string   `gorm:"column:assigned_vehicle_id" db:"assigned_vehicle_id"`
	IsActive          bool      `gorm:"column:is_active;default:true" db:"is_active"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" db:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" db:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
