package preference

import apperrors "github.com/kislikjeka/quicktrade/internal/shared/errors"

var (
	ErrUnsupportedExchange = apperrors.Validation("exchange is not supported")
	ErrMissingCurrency     = apperrors.Validation("display currency is required")
	ErrInvalidTheme        = apperrors.Validation("theme must be dark or light")
	ErrInvalidSettings     = apperrors.Validation("subaccount settings must be a JSON object")
)
