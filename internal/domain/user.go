package domain

import "strings"

// User is the subset of an identity-provider account that SubWatch reads.
type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"user_metadata"`
}

// UserMetadata holds the profile fields captured at sign-up.
type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// DisplayName returns the full name, else the local part of the email, else "there".
func (u *User) DisplayName() string {
	if u == nil {
		return "there"
	}
	if name := strings.TrimSpace(u.Metadata.FullName); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(strings.TrimSpace(u.Email), "@"); local != "" {
		return local
	}
	return "there"
}

// HasEmail reports whether the user can receive email.
func (u *User) HasEmail() bool {
	return u != nil && strings.TrimSpace(u.Email) != ""
}
