package models

import (
	"gorm.io/gorm"
)

// Tenant is one independently operated facility in the network. It is the
// unit of metric aggregation and alert scoping.
type Tenant struct {
	gorm.Model
	Code     string `json:"code" gorm:"uniqueIndex;not null"`
	Name     string `json:"name" gorm:"not null"`
	Region   string `json:"region"`
	IsActive bool   `json:"is_active" gorm:"default:true"`
}
