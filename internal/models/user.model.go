package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type User struct {
	BaseUUIDModel
	FirstName   string  `gorm:"type:text"               json:"firstName"`
	LastName    string  `gorm:"type:text"               json:"lastName"`
	FullName    string  `gorm:"type:text"               json:"fullName"`
	DisplayName string  `gorm:"type:text"               json:"displayName"`
	Email       *string `gorm:"type:text;uniqueIndex"   json:"email"`
	IsAdmin     bool    `gorm:"type:bool;default:false" json:"isAdmin"`
	IsActive    bool    `gorm:"type:bool;default:true"  json:"isActive"`

	// Subject of the identity provider's ID tokens
	OIDCUserID      string     `gorm:"column:oidc_user_id;type:text;uniqueIndex" json:"-"`
	LastLoginAt     *time.Time `gorm:"type:timestamp"                            json:"lastLoginAt,omitempty"`
	ProfileVerified bool       `gorm:"type:bool;default:false"                   json:"profileVerified"`

	Reservations []Reservation `gorm:"foreignKey:UserID" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.FullName == "" {
		u.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if u.DisplayName == "" {
		u.DisplayName = u.FullName
	}
	return nil
}

type UserProfile struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	FullName        string     `json:"fullName"`
	DisplayName     string     `json:"displayName"`
	Email           *string    `json:"email,omitempty"`
	IsActive        bool       `json:"isActive"`
	IsAdmin         bool       `json:"isAdmin"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	ProfileVerified bool       `json:"profileVerified"`
}

// ToProfile converts a User to its public profile
func (u *User) ToProfile() UserProfile {
	return UserProfile{
		ID:              u.ID.String(),
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName,
		DisplayName:     u.DisplayName,
		Email:           u.Email,
		IsActive:        u.IsActive,
		IsAdmin:         u.IsAdmin,
		LastLoginAt:     u.LastLoginAt,
		ProfileVerified: u.ProfileVerified,
	}
}

// UpdateFromIdentity refreshes the user from verified ID token claims and
// stamps the login time.
func (u *User) UpdateFromIdentity(
	subject string,
	email, name *string,
	firstName, lastName string,
	emailVerified bool,
	now time.Time,
) {
	u.LastLoginAt = &now

	if subject != "" {
		u.OIDCUserID = subject
	}

	if email != nil && *email != "" {
		u.Email = email
	}

	if firstName != "" {
		u.FirstName = firstName
	}
	if lastName != "" {
		u.LastName = lastName
	}
	if firstName != "" || lastName != "" {
		u.FullName = strings.TrimSpace(firstName + " " + lastName)
	}

	if name != nil && *name != "" {
		u.DisplayName = *name
	} else if u.FullName != "" {
		u.DisplayName = u.FullName
	}

	if emailVerified && email != nil && *email != "" {
		u.ProfileVerified = true
	}
}
