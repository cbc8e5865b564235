package models

import "strings"

// User is the customer record read for billing and contact details.
type User struct {
	ID        string `bson:"id" json:"id"`
	Email     string `bson:"email" json:"email"`
	FirstName string `bson:"first_name" json:"first_name"`
	LastName  string `bson:"last_name" json:"last_name"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
