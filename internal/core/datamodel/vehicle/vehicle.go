package vehicle

import "time"

type Vehicle struct {
	ID              string    `gorm:"primaryKey;column:id"`
	Make            string    `gorm:"column:make;not null"`
	Model           string    `gorm:"column:model;not null"`
	Year            int       `gorm:"column:year"`
	LicensePlate    string    `gorm:"column:license_plate;uniqueIndex;not null"`
	CurrentOdometer int64     `gorm:"column:current_odometer;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
