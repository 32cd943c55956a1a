package dto

import "time"

type UserCreateDTO struct {
	Name  string `json:"name" maxLength:"200" doc:"Display name"`
	Email string `json:"email,omitempty" format:"email" doc:"Defaults to the email claim of the access token"`
}

type UserResponseDTO struct {
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	HasStripeCustomer bool      `json:"has_stripe_customer"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
