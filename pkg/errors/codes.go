package errors

import "net/http"

// ErrorCode is a typed, stable identifier for a failure category.  Codes are
// namespaced by subsystem so that dashboards and alerts can group failures
// without parsing free-text messages.
type ErrorCode string

// String returns the code itself; ErrorCode is already human-readable.
func (c ErrorCode) String() string { return string(c) }

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
)

// Material Module Error Codes
const (
	ErrCodeMaterialNotFound      ErrorCode = "MAT_001"
	ErrCodeMaterialInvalidField  ErrorCode = "MAT_002"
	ErrCodeMaterialImportFailed  ErrorCode = "MAT_003"
	ErrCodeParameterWriteFailed  ErrorCode = "MAT_004"
	ErrCodeValidationDocRejected ErrorCode = "MAT_005"
)

// Category Rule Error Codes
const (
	ErrCodeRuleNotFound      ErrorCode = "RULE_001"
	ErrCodeRuleInvalid       ErrorCode = "RULE_002"
	ErrCodeBucketRuleInvalid ErrorCode = "RULE_003"
)

// Registry / Synonym Lookup Error Codes
const (
	ErrCodeRegistryUnavailable ErrorCode = "REG_001"
	ErrCodeRegistryBadPayload  ErrorCode = "REG_002"
	ErrCodeSynonymLookupFailed ErrorCode = "REG_003"
)

// LLM Assistant Error Codes
const (
	ErrCodeAssistantUnavailable ErrorCode = "LLM_001"
	ErrCodeAssistantBadOutput   ErrorCode = "LLM_002"
)

// Hierarchy / Cluster Tree Error Codes
const (
	ErrCodeTreeBuildFailed   ErrorCode = "TREE_001"
	ErrCodeOverrideDangling  ErrorCode = "TREE_002"
	ErrCodeAnnotationInvalid ErrorCode = "TREE_003"
)

// Enrichment Job Error Codes
const (
	ErrCodeEnrichmentRunning ErrorCode = "ENR_001"
	ErrCodeEnrichmentFailed  ErrorCode = "ENR_002"
)

// Short aliases used at call sites where the full ErrCode name reads noisily.
const (
	CodeOK               = ErrorCode("OK")
	CodeUnknown          = ErrorCode("UNKNOWN")
	CodeInternal         = ErrCodeInternal
	CodeInvalidParam     = ErrCodeBadRequest
	CodeNotFound         = ErrCodeNotFound
	CodeConflict         = ErrCodeConflict
	CodeRateLimit        = ErrCodeTooManyRequests
	CodeMaterialNotFound = ErrCodeMaterialNotFound
	CodeRuleNotFound     = ErrCodeRuleNotFound
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.  Codes absent
// from the map resolve to 500 via HTTPStatus.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeMaterialNotFound:      http.StatusNotFound,
	ErrCodeMaterialInvalidField:  http.StatusBadRequest,
	ErrCodeMaterialImportFailed:  http.StatusBadRequest,
	ErrCodeParameterWriteFailed:  http.StatusInternalServerError,
	ErrCodeValidationDocRejected: http.StatusBadRequest,

	ErrCodeRuleNotFound:      http.StatusNotFound,
	ErrCodeRuleInvalid:       http.StatusBadRequest,
	ErrCodeBucketRuleInvalid: http.StatusBadRequest,

	ErrCodeRegistryUnavailable: http.StatusBadGateway,
	ErrCodeRegistryBadPayload:  http.StatusBadGateway,
	ErrCodeSynonymLookupFailed: http.StatusBadGateway,

	ErrCodeAssistantUnavailable: http.StatusServiceUnavailable,
	ErrCodeAssistantBadOutput:   http.StatusBadGateway,

	ErrCodeTreeBuildFailed:   http.StatusInternalServerError,
	ErrCodeOverrideDangling:  http.StatusInternalServerError,
	ErrCodeAnnotationInvalid: http.StatusBadRequest,

	ErrCodeEnrichmentRunning: http.StatusConflict,
	ErrCodeEnrichmentFailed:  http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code for an ErrorCode, defaulting to 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := ErrorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
