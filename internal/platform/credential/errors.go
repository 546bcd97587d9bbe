package credential

import (
	apperrors "github.com/kislikjeka/quicktrade/internal/shared/errors"
)

var (
	// Validation errors
	ErrUnsupportedExchange   = apperrors.Validation("unsupported exchange")
	ErrMissingSubaccountName = apperrors.Validation("subaccount name is required")
	ErrSubaccountNameTooLong = apperrors.Validation("subaccount name exceeds 64 characters")
	ErrMissingAPIKey         = apperrors.Validation("API key is required")
	ErrMissingAPISecret      = apperrors.Validation("API secret is required")

	// Conflict errors
	ErrDuplicateSubaccount = apperrors.Conflict("subaccount name already exists for this exchange")
	ErrEditInProgress      = apperrors.Conflict("another subaccount is being edited")

	// Lookup errors
	ErrSubaccountNotFound = apperrors.NotFound("subaccount not found")
)
