package models

import "github.com/dgrijalva/jwt-go"

// Claims is the identity encoded in every issued token.
type Claims struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	jwt.StandardClaims
}

// ClaimsFor builds the identity claims of u.
func ClaimsFor(u *User) Claims {
	return Claims{ID: u.ID, Email: u.Email, Username: u.Username, Avatar: u.Avatar}
}
