package trading

import apperrors "github.com/kislikjeka/quicktrade/internal/shared/errors"

var (
	ErrMissingExchange    = apperrors.Validation("exchange is required")
	ErrMissingSubaccount  = apperrors.Validation("subaccount is required")
	ErrInvalidSymbol      = apperrors.Validation("symbol must look like BASE/QUOTE")
	ErrInvalidSide        = apperrors.Validation("side must be Buy or Sell")
	ErrInvalidOrderType   = apperrors.Validation("order type must be Market or Limit")
	ErrInvalidAmount      = apperrors.Validation("amount must be greater than zero")
	ErrInvalidPrice       = apperrors.Validation("limit orders need a price greater than zero")
	ErrMissingCredentials = apperrors.Validation("subaccount has no saved API credentials")
)
