// Package errors provides standardized error handling for BPMN workflow integration
// and for the webhook HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"

	ErrCodeUserNotFound   ErrorCode = "USER_NOT_FOUND"
	ErrCodeNotAdmin       ErrorCode = "NOT_ADMIN"
	ErrCodeSelfDemotion   ErrorCode = "SELF_DEMOTION"
	ErrCodeReasonRequired ErrorCode = "REASON_REQUIRED"

	ErrCodeNegativeBalance     ErrorCode = "NEGATIVE_BALANCE"
	ErrCodeNegativeUsage       ErrorCode = "NEGATIVE_USAGE"
	ErrCodeInvalidTier         ErrorCode = "INVALID_TIER"
	ErrCodeInvalidStatus       ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidRole         ErrorCode = "INVALID_ROLE"
	ErrCodeUsageLimitExceeded  ErrorCode = "USAGE_LIMIT_EXCEEDED"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	ErrCodeInvalidAmount        ErrorCode = "INVALID_AMOUNT"
	ErrCodeTierNotPurchasable   ErrorCode = "TIER_NOT_PURCHASABLE"
	ErrCodeNoPaymentCustomer    ErrorCode = "NO_PAYMENT_CUSTOMER"
	ErrCodeTopUpNotPaid         ErrorCode = "TOPUP_NOT_PAID"
	ErrCodeInvalidSession       ErrorCode = "INVALID_CHECKOUT_SESSION"
	ErrCodeUnknownPrice         ErrorCode = "UNKNOWN_PRICE"
	ErrCodeEventInFlight        ErrorCode = "EVENT_IN_FLIGHT"
	ErrCodeInvalidSignature     ErrorCode = "INVALID_WEBHOOK_SIGNATURE"
	ErrCodePaymentProviderError ErrorCode = "PAYMENT_PROVIDER_ERROR"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeInvalidReportType        ErrorCode = "INVALID_REPORT_TYPE"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeCRMSyncFailed          ErrorCode = "CRM_SYNC_FAILED"
	ErrCodeAuthentication         ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeExternalService        ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound       ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule           ErrorCode = "BUSINESS_RULE_VIOLATION"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so the sentinels
// below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrUserNotFound        = &StandardError{Code: ErrCodeUserNotFound}
	ErrNotAdmin            = &StandardError{Code: ErrCodeNotAdmin}
	ErrUsageLimitExceeded  = &StandardError{Code: ErrCodeUsageLimitExceeded}
	ErrInsufficientBalance = &StandardError{Code: ErrCodeInsufficientBalance}
	ErrTopUpNotPaid        = &StandardError{Code: ErrCodeTopUpNotPaid}
	ErrEventInFlight       = &StandardError{Code: ErrCodeEventInFlight}
	ErrInvalidSignature    = &StandardError{Code: ErrCodeInvalidSignature}
	ErrValidation          = &StandardError{Code: ErrCodeValidationFailed}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInputParsingError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewUserNotFoundError(userID string) *StandardError {
	return newError(ErrCodeUserNotFound, "User not found", fmt.Sprintf("userId: %s", userID), false)
}

func NewNotAdminError(adminID string) *StandardError {
	return newError(ErrCodeNotAdmin, "Acting user is not an administrator", fmt.Sprintf("adminId: %s", adminID), false)
}

func NewSelfDemotionError(adminID string) *StandardError {
	return newError(ErrCodeSelfDemotion, "Administrators cannot remove their own admin role", fmt.Sprintf("adminId: %s", adminID), false)
}

func NewReasonRequiredError(details string) *StandardError {
	return newError(ErrCodeReasonRequired, "Adjustment reason is required", details, false)
}

func NewNegativeBalanceError(current, delta int64) *StandardError {
	return newError(ErrCodeNegativeBalance, "Balance cannot become negative",
		fmt.Sprintf("current: %d, resulting: %d", current, current+delta), false)
}

func NewNegativeUsageError(field string, resulting int) *StandardError {
	return newError(ErrCodeNegativeUsage, "Usage counter cannot become negative",
		fmt.Sprintf("field: %s, resulting: %d", field, resulting), false)
}

func NewInvalidTierError(tier string) *StandardError {
	return newError(ErrCodeInvalidTier, "Unknown subscription tier", fmt.Sprintf("tier: %s", tier), false)
}

func NewInvalidStatusError(status string) *StandardError {
	return newError(ErrCodeInvalidStatus, "Unknown subscription status", fmt.Sprintf("status: %s", status), false)
}

func NewInvalidRoleError(role string) *StandardError {
	return newError(ErrCodeInvalidRole, "Unknown role", fmt.Sprintf("role: %s", role), false)
}

func NewUsageLimitExceededError(action string, used, limit int) *StandardError {
	e := newError(ErrCodeUsageLimitExceeded, "Usage limit reached and balance cannot cover overage",
		fmt.Sprintf("action: %s, used: %d, limit: %d", action, used, limit), false)
	e.Metadata = map[string]interface{}{"action": action, "used": used, "limit": limit}
	return e
}

func NewInsufficientBalanceError(userID string, required int64) *StandardError {
	return newError(ErrCodeInsufficientBalance, "Top-up balance is insufficient",
		fmt.Sprintf("userId: %s, required: %d", userID, required), false)
}

func NewInvalidAmountError(amount, min, max int64) *StandardError {
	return newError(ErrCodeInvalidAmount, "Top-up amount out of range",
		fmt.Sprintf("amount: %d, min: %d, max: %d", amount, min, max), false)
}

func NewTierNotPurchasableError(tier string) *StandardError {
	return newError(ErrCodeTierNotPurchasable, "Tier cannot be purchased through checkout", fmt.Sprintf("tier: %s", tier), false)
}

func NewNoPaymentCustomerError(userID string) *StandardError {
	return newError(ErrCodeNoPaymentCustomer, "User has no payment customer", fmt.Sprintf("userId: %s", userID), false)
}

func NewTopUpNotPaidError(sessionID, paymentStatus string) *StandardError {
	return newError(ErrCodeTopUpNotPaid, "Checkout session is not paid",
		fmt.Sprintf("sessionId: %s, paymentStatus: %s", sessionID, paymentStatus), false)
}

func NewInvalidSessionError(sessionID, details string) *StandardError {
	return newError(ErrCodeInvalidSession, "Checkout session cannot be credited",
		fmt.Sprintf("sessionId: %s, %s", sessionID, details), false)
}

func NewUnknownPriceError(priceID string) *StandardError {
	return newError(ErrCodeUnknownPrice, "Subscription price does not map to a tier", fmt.Sprintf("priceId: %s", priceID), false)
}

func NewEventInFlightError(eventID string) *StandardError {
	return newError(ErrCodeEventInFlight, "Event is being processed by another delivery", fmt.Sprintf("eventId: %s", eventID), true)
}

func NewInvalidSignatureError(err error) *StandardError {
	return newError(ErrCodeInvalidSignature, "Webhook signature verification failed", err.Error(), false)
}

func NewPaymentProviderError(operation string, err error) *StandardError {
	return newError(ErrCodePaymentProviderError, fmt.Sprintf("Payment provider call '%s' failed", operation), err.Error(), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewInvalidReportTypeError(reportType string) *StandardError {
	return newError(ErrCodeInvalidReportType, "Unsupported report type", fmt.Sprintf("reportType: %s", reportType), false)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed", fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

func NewCRMSyncFailedError(err error) *StandardError {
	return newError(ErrCodeCRMSyncFailed, "CRM synchronisation failed", err.Error(), true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

// WrapDatabase returns err unchanged when it already is a StandardError and
// wraps it as a retryable query failure otherwise.
func WrapDatabase(operation string, err error) error {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return err
	}
	return NewQueryExecutionFailedError(operation, err)
}

// Normalize converts any error into a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// CodeOf returns the error code of err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return string(Normalize(err).Code)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by boundary
// events in the billing process models. Codes not listed are thrown verbatim.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeUsageLimitExceeded:  "USAGE_LIMIT_EXCEEDED",
	ErrCodeInsufficientBalance: "USAGE_LIMIT_EXCEEDED",
	ErrCodeUserNotFound:        "USER_NOT_FOUND",
	ErrCodeNotAdmin:            "ADJUSTMENT_REJECTED",
	ErrCodeSelfDemotion:        "ADJUSTMENT_REJECTED",
	ErrCodeReasonRequired:      "ADJUSTMENT_REJECTED",
	ErrCodeNegativeBalance:     "ADJUSTMENT_REJECTED",
	ErrCodeNegativeUsage:       "ADJUSTMENT_REJECTED",
	ErrCodeInvalidTier:         "ADJUSTMENT_REJECTED",
	ErrCodeInvalidStatus:       "ADJUSTMENT_REJECTED",
	ErrCodeInvalidRole:         "ADJUSTMENT_REJECTED",
	ErrCodeTopUpNotPaid:        "TOPUP_NOT_PAID",
	ErrCodeInvalidSession:      "TOPUP_REJECTED",
	ErrCodeInvalidAmount:       "TOPUP_REJECTED",
	ErrCodeValidationFailed:    "VALIDATION_FAILED",
	ErrCodeInputParsingFailed:  "VALIDATION_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodePaymentProviderError,
		ErrCodeNotificationSendFailed,
		ErrCodeCRMSyncFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout,
		ErrCodeEventInFlight:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "USAGE") || strings.Contains(codeStr, "BALANCE"):
		return "USAGE"
	case strings.Contains(codeStr, "TOPUP") || strings.Contains(codeStr, "PAYMENT") ||
		strings.Contains(codeStr, "CHECKOUT") || strings.Contains(codeStr, "PRICE") ||
		strings.Contains(codeStr, "EVENT") || strings.Contains(codeStr, "WEBHOOK"):
		return "PAYMENTS"
	case strings.Contains(codeStr, "ADMIN") || strings.Contains(codeStr, "DEMOTION") || strings.Contains(codeStr, "REASON"):
		return "ADMIN"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "REPORT"):
		return "ANALYTICS"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "CRM"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error onto the status code returned by the webhook endpoint.
func HTTPStatus(err error) int {
	stdErr := Normalize(err)
	switch stdErr.Code {
	case ErrCodeInvalidSignature, ErrCodeValidationFailed, ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case ErrCodeEventInFlight:
		return http.StatusConflict
	case ErrCodeUserNotFound, ErrCodeUnknownPrice, ErrCodeInvalidSession:
		return http.StatusUnprocessableEntity
	default:
		if stdErr.Retryable {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}
