// Package errors provides custom error types for catalog and cart operations.
package errors

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")
var ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
var ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
var ErrLineNotFound = fmt.Errorf("cart line %w", ErrNotFound)

var ErrValidation = errors.New("validation failed")
var ErrInvalidFilter = fmt.Errorf("invalid filter: %w", ErrValidation)
var ErrUnknownSort = fmt.Errorf("unknown sort strategy: %w", ErrValidation)
var ErrInvalidQuantity = fmt.Errorf("quantity out of range: %w", ErrValidation)
var ErrInvalidTree = fmt.Errorf("invalid category tree: %w", ErrValidation)

var ErrInvalidTransition = errors.New("invalid session state transition")

var ErrRejected = errors.New("rejected by backend")
