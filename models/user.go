package models

import "gorm.io/gorm"

// User is an actor of the expenditure chain (budget controller, finance
// director, general director, treasury...). The password hash never leaves
// the model; handlers build dedicated response structs.
type User struct {
	gorm.Model
	Login        string `json:"login" gorm:"uniqueIndex;not null"`
	FullName     string `json:"fullName"`
	Email        string `json:"email" gorm:"uniqueIndex"`
	PasswordHash string `json:"-"`
	Status       string `json:"status" gorm:"default:'active'"`
	Roles        []Role `json:"roles" gorm:"many2many:user_roles;"`
}

// Role groups permissions. A user may hold several roles.
type Role struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"unique;not null"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions" gorm:"many2many:role_permissions;"`
}

// Permission is a named capability, e.g. "engagement_valider". Guard checks
// in the engine resolve to these names.
type Permission struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"unique;not null"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"not null"`
}
