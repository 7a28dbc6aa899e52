package negocio

import "errors"

var (
	// ErrNegocioNotFound is returned when a negocio cannot be found.
	ErrNegocioNotFound = errors.New("negocio not found")

	// ErrInvalidIdentifier is returned when the identifier format is invalid.
	ErrInvalidIdentifier = errors.New("invalid negocio identifier")

	// ErrNoNegocioInContext is returned when no negocio is found in context.
	ErrNoNegocioInContext = errors.New("no negocio in context")

	// ErrNegocioInactivo is returned when trying to use an inactive negocio.
	ErrNegocioInactivo = errors.New("negocio is inactive")
)
