package request

// RequestPasswordReset holds the request body for starting a reset. The
// response never reveals whether the email exists; the token is delivered
// out of band.
type RequestPasswordReset struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmPasswordReset holds the request body for consuming a reset token.
type ConfirmPasswordReset struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=12,max=128"`
}
