package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Vehicles []Vehicle `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Vehicle struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            uint       `gorm:"index;not null"           json:"userId"`
	CustomNumber      uint       `gorm:"not null"                 json:"custom_number"`
	VIN               string     `gorm:"unique;not null"          json:"vin"`
	Brand             string     `json:"brand"`
	Model             string     `json:"model"`
	Version           string     `json:"version"`
	Engine            string     `json:"engine"`
	FirstRegistration *time.Time `json:"first_registration"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
