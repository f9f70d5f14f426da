package auth

// Inputs carry form field names in the form tag; validation messages are
// keyed by them.

type SignupInput struct {
	Email           string `form:"email" validate:"required,email,email_marker"`
	Password        string `form:"password" validate:"min=4"`
	ConfirmPassword string `form:"confirmPassword" validate:"eqfield=Password"`
}

type LoginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type ForgotInput struct {
	Email string `form:"email" validate:"required,email"`
}

type ResetInput struct {
	Token    string `form:"token" validate:"-"`
	Password string `form:"password" validate:"min=4"`
	Confirm  string `form:"confirm" validate:"eqfield=Password"`
}

type ProfileInput struct {
	Email    string `form:"email" validate:"required,email"`
	Name     string `form:"name" validate:"max=200"`
	Gender   string `form:"gender" validate:"max=50"`
	Location string `form:"location" validate:"max=200"`
	Website  string `form:"website" validate:"max=500"`
}

type PasswordInput struct {
	Password        string `form:"password" validate:"min=4"`
	ConfirmPassword string `form:"confirmPassword" validate:"eqfield=Password"`
}
