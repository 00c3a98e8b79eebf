package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeBadRequest represents a malformed client request.
	CodeBadRequest Code = "BAD_REQUEST"

	// Product errors
	CodeProductIDEmpty         Code = "PRODUCT_ID_EMPTY"
	CodeProductNameEmpty       Code = "PRODUCT_NAME_EMPTY"
	CodeProductPriceNegative   Code = "PRODUCT_PRICE_NEGATIVE"
	CodeProductInvalidCategory Code = "PRODUCT_INVALID_CATEGORY"
	CodeProductFeaturedLimit   Code = "PRODUCT_FEATURED_LIMIT"

	// Weekly PDF errors
	CodePDFIDEmpty      Code = "PDF_ID_EMPTY"
	CodePDFNameEmpty    Code = "PDF_NAME_EMPTY"
	CodePDFURLEmpty     Code = "PDF_URL_EMPTY"
	CodePDFInvalidWeek  Code = "PDF_INVALID_WEEK"
	CodePDFImmutable    Code = "PDF_IMMUTABLE"

	// Auth errors
	CodeAuthInvalidCredentials Code = "AUTH_INVALID_CREDENTIALS"
	CodeAuthTokenInvalid       Code = "AUTH_TOKEN_INVALID"
	CodeAuthTokenExpired       Code = "AUTH_TOKEN_EXPIRED"

	// Asset errors
	CodeAssetEmpty       Code = "ASSET_EMPTY"
	CodeAssetUnsupported Code = "ASSET_UNSUPPORTED_TYPE"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeStorage       Code = "STORAGE_FAILURE"
)
