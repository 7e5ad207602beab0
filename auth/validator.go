package auth

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=32,alphanum"`
	DisplayName string `json:"displayName" validate:"omitempty,max=64"`
	Password    string `json:"password" validate:"required,min=12,max=72"`
}

func ValidateLogin(req LoginRequest) error {
	return validate.Struct(req)
}

func ValidateRegister(req RegisterRequest) error {
	return validate.Struct(req)
}
