package erp

import (
	"time"

	"github.com/shopspring/decimal"
)

// Oracle Fusion REST resource paths, relative to the versioned resource root
const (
	oracleSCMRoot         = "/fscmRestApi/resources"
	oracleCRMRoot         = "/crmRestApi/resources"
	oracleItems           = "items"
	oracleAccounts        = "accounts"
	oracleSalesOrders     = "salesOrdersForOrderHub"
	oracleFrameworkHeader = "REST-Framework-Version"
	oracleFrameworkValue  = "4"
	oracleSourceSystem    = "ERPCORE"
	oracleMaxFilterClause = 40
)

// oracleCollection is the envelope of a collection resource
type oracleCollection[T any] struct {
	Items        []T    `json:"items"`
	Count        int    `json:"count"`
	HasMore      bool   `json:"hasMore"`
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
	TotalResults *int64 `json:"totalResults,omitempty"`
}

// oracleError is the error body returned by the REST framework
type oracleError struct {
	Title     string `json:"title"`
	Detail    string `json:"detail"`
	ErrorCode string `json:"o:errorCode"`
	Status    string `json:"status"`
}

// oracleItem is an items resource row
type oracleItem struct {
	ItemNumber      string              `json:"ItemNumber"`
	ItemDescription string              `json:"ItemDescription"`
	LongDescription string              `json:"LongDescription"`
	ItemStatusValue string              `json:"ItemStatusValue"`
	ListPrice       decimal.NullDecimal `json:"ListPrice"`
	CurrencyCode    string              `json:"CurrencyCode"`
	LastUpdateDate  string              `json:"LastUpdateDate"`
	CreationDate    string              `json:"CreationDate"`
}

// oracleAccount is an accounts resource row
type oracleAccount struct {
	PartyNumber          string `json:"PartyNumber"`
	OrganizationName     string `json:"OrganizationName"`
	EmailAddress         string `json:"EmailAddress"`
	FormattedPhoneNumber string `json:"FormattedPhoneNumber"`
	Status               string `json:"Status"`
	LastUpdateDate       string `json:"LastUpdateDate"`
	CreationDate         string `json:"CreationDate"`
}

// oracleSalesOrderCreate is the payload of salesOrdersForOrderHub
type oracleSalesOrderCreate struct {
	SourceTransactionNumber   string                 `json:"SourceTransactionNumber"`
	SourceTransactionSystem   string                 `json:"SourceTransactionSystem"`
	SourceTransactionId       string                 `json:"SourceTransactionId"`
	BusinessUnitName          string                 `json:"BusinessUnitName,omitempty"`
	BuyingPartyNumber         string                 `json:"BuyingPartyNumber"`
	TransactionalCurrencyCode string                 `json:"TransactionalCurrencyCode"`
	SubmittedFlag             bool                   `json:"SubmittedFlag"`
	Lines                     []oracleSalesOrderLine `json:"lines"`
}

type oracleSalesOrderLine struct {
	SourceTransactionLineId     string          `json:"SourceTransactionLineId"`
	SourceTransactionLineNumber string          `json:"SourceTransactionLineNumber"`
	ProductNumber               string          `json:"ProductNumber"`
	OrderedQuantity             decimal.Decimal `json:"OrderedQuantity"`
	UnitSellingPrice            decimal.Decimal `json:"UnitSellingPrice"`
}

// oracleSalesOrder is a created order
type oracleSalesOrder struct {
	HeaderId                  int64               `json:"HeaderId"`
	OrderNumber               string              `json:"OrderNumber"`
	SourceTransactionNumber   string              `json:"SourceTransactionNumber"`
	BuyingPartyNumber         string              `json:"BuyingPartyNumber"`
	TransactionalCurrencyCode string              `json:"TransactionalCurrencyCode"`
	StatusCode                string              `json:"StatusCode"`
	OnHold                    bool                `json:"OnHold"`
	TotalAmount               decimal.NullDecimal `json:"TotalAmount"`
	CreationDate              string              `json:"CreationDate"`
}

// parseOracleTime parses the ISO-8601 timestamps of the REST framework
func parseOracleTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// date-only attributes
		if d, derr := time.Parse(time.DateOnly, s); derr == nil {
			return d.UTC(), nil
		}
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// formatOracleTime renders a q filter literal for a timestamp attribute
func formatOracleTime(t time.Time) string {
	return quoteLiteral(t.UTC().Format(time.RFC3339Nano))
}
