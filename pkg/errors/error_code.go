package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeMissingParameter     ErrorCode = 103
	ErrCodeUnknownInstrument    ErrorCode = 104
	ErrCodeUnknownStrategy      ErrorCode = 105
	ErrCodeInvalidGranularity   ErrorCode = 106

	// Precision errors (200-299)
	ErrCodePrecisionViolation ErrorCode = 200

	// Sizing errors (300-399)
	ErrCodeInsufficientRiskInput ErrorCode = 300
	ErrCodeSizeTooSmall          ErrorCode = 301

	// Trading errors (400-499)
	ErrCodeInsufficientMargin ErrorCode = 400
	ErrCodeOrderFailed        ErrorCode = 401
	ErrCodePositionNotFound   ErrorCode = 402
	ErrCodeMissingRate        ErrorCode = 403

	// Data errors (500-599)
	ErrCodePartialCandle         ErrorCode = 500
	ErrCodeDataGap               ErrorCode = 501
	ErrCodeNoDataFound           ErrorCode = 502
	ErrCodeQueryFailed           ErrorCode = 503
	ErrCodeDataSourceUnavailable ErrorCode = 504

	// Ledger errors (600-699)
	ErrCodeLedgerWriteFailed ErrorCode = 600
	ErrCodeLedgerQueryFailed ErrorCode = 601

	// Provider errors (700-799)
	ErrCodeProviderFetchFailed ErrorCode = 700
	ErrCodeProviderWriteFailed ErrorCode = 701
	ErrCodeInvalidProvider     ErrorCode = 702
)
