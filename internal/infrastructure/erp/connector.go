// Package erp contains the concrete ERP providers, the resilient fallback
// decorator and the provider factory.
package erp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/erp/erpcore/internal/domain/integration"
)

// Failure codes specific to the connectors
const (
	CodeInvalidConnectorConfig = "INVALID_CONNECTOR_CONFIG"
	CodeAuthFailed             = "AUTH_FAILED"
	CodeUnknownProviderType    = "UNKNOWN_PROVIDER_TYPE"
	CodeTenantNotConfigured    = "TENANT_NOT_CONFIGURED"
	CodeNotSubmitted           = "NOT_SUBMITTED"
)

// ParamRequestsPerSecond overrides a connector's request rate for one tenant
const ParamRequestsPerSecond = "requests_per_second"

// Errors for provider configuration
var (
	ErrTenantNotConfigured = errors.New("erp: tenant has no ERP configuration")
	ErrAuthFailed          = errors.New("erp: backend rejected the credentials")
)

var connectorValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// validateConnectorConfig validates a connector config struct and reports
// every offending field as one validation error
func validateConnectorConfig(name string, cfg any) error {
	err := connectorValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return integration.NewValidationError(CodeInvalidConnectorConfig, fmt.Sprintf("%s: %v", name, err))
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return integration.NewValidationError(CodeInvalidConnectorConfig,
		fmt.Sprintf("%s: invalid configuration: %s", name, strings.Join(problems, "; ")))
}

// newHTTPClient builds the HTTP client of one connector session. The cookie
// jar keeps session cookies that some backends bind their tokens to.
func newHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}
}

// basicOrBearer authorizes with an API key as bearer token, else basic auth
func basicOrBearer(username, password, apiKey string) func(*http.Request) {
	return func(req *http.Request) {
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
			return
		}
		req.SetBasicAuth(username, password)
	}
}

// authError converts a rejected-credentials response into a validation error
func authError(name string, status int) error {
	return &integration.Error{
		Kind:    integration.KindValidation,
		Code:    CodeAuthFailed,
		Message: fmt.Sprintf("%s: backend rejected the credentials (HTTP %d)", name, status),
		Err:     ErrAuthFailed,
	}
}

// quoteLiteral quotes a string literal for OData and Oracle REST filters
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// orFilter joins "field eq 'v'" clauses for every id
func orFilter(field, op string, ids []string) string {
	clauses := make([]string, 0, len(ids))
	for _, id := range ids {
		clauses = append(clauses, field+op+quoteLiteral(id))
	}
	return strings.Join(clauses, " or ")
}

// dedupe removes empty and duplicate ids, keeping the first occurrence
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// createEach creates orders one at a time. Each item succeeds or fails on its
// own. When the attempt deadline passes mid-batch the items not yet sent are
// recorded as NOT_SUBMITTED and the partial result is returned, so a retry
// never re-posts orders that were already created. Cancellation returns the
// context error.
func createEach(
	ctx context.Context,
	orders []integration.OrderRequest,
	create func(ctx context.Context, order *integration.OrderRequest) (integration.Result[*integration.Order], error),
) (integration.Result[*integration.BatchResult], error) {
	batch := integration.NewBatchBuilder(len(orders))
	for i := range orders {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if !errors.Is(ctxErr, context.DeadlineExceeded) {
				return integration.Result[*integration.BatchResult]{}, ctxErr
			}
			for _, rest := range orders[i:] {
				batch.Fail(rest.ExternalRef, CodeNotSubmitted, "not sent before the attempt deadline")
			}
			break
		}
		res, err := create(ctx, &orders[i])
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
				return integration.Result[*integration.BatchResult]{}, ctxErr
			}
			batch.FailErr(orders[i].ExternalRef, err)
		case res.IsFailure():
			batch.Fail(orders[i].ExternalRef, res.Failure().Code, res.Failure().Message)
		default:
			batch.Succeed()
		}
	}
	return integration.Ok(batch.Result()), nil
}
