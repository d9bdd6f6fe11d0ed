package validation

import "errors"

// ErrInvalid is matched by every error in this package. The error text is
// the message returned to API clients.
var ErrInvalid = errors.New("invalid input")

type validationError struct {
	message string
}

func (e *validationError) Error() string { return e.message }

func (e *validationError) Is(target error) bool { return target == ErrInvalid }

func newError(message string) error {
	return &validationError{message: message}
}

var (
	ErrMissingExtension = newError("Extension de video no encontrada")
	ErrInvalidFileType  = newError("Formato de video no permitido")
	ErrFileTooLarge     = newError("El archivo supera el tamaño máximo permitido")

	ErrUsernameRequired = newError("Nombre de usuario es requerido")
	ErrUsernameTooShort = newError("Nombre de usuario es muy corto")
	ErrUsernameTooLong  = newError("Nombre de usuario es muy largo")
	ErrEmailRequired    = newError("Email es requerido")
	ErrEmailTooLong     = newError("Email es demasiado largo")
	ErrEmailInvalid     = newError("Email no es válido")
	ErrPasswordRequired = newError("Contraseña es requerida")
	ErrPasswordTooShort = newError("Contraseña es muy corta")
	ErrPasswordTooLong  = newError("Contraseña es muy larga")
	ErrPasswordMismatch = newError("Contraseñas no coinciden")
)
