package erp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SAP S/4HANA OData V2 service paths
const (
	sapProductService  = "/sap/opu/odata/sap/API_PRODUCT_SRV"
	sapPartnerService  = "/sap/opu/odata/sap/API_BUSINESS_PARTNER"
	sapSalesService    = "/sap/opu/odata/sap/API_SALES_ORDER_SRV"
	sapProductSet      = sapProductService + "/A_Product"
	sapPartnerSet      = sapPartnerService + "/A_BusinessPartner"
	sapSalesOrderSet   = sapSalesService + "/A_SalesOrder"
	sapCSRFHeader      = "X-CSRF-Token"
	sapCSRFFetch       = "Fetch"
	sapCSRFRequired    = "Required"
	sapSalesOrderType  = "OR"
	sapProductExpand   = "to_Description,to_Valuation"
	sapCustomerExpand  = "to_BusinessPartnerAddress/to_EmailAddress,to_BusinessPartnerAddress/to_PhoneNumber"
	sapCustomerFilter  = "BusinessPartnerCategory eq '2'"
	sapMaxFilterClause = 40
)

// odataEntity wraps a single entity response: {"d": {...}}
type odataEntity[T any] struct {
	D T `json:"d"`
}

// odataCollection wraps a collection response: {"d": {"results": [...], "__count": "12"}}
type odataCollection[T any] struct {
	D struct {
		Results []T    `json:"results"`
		Count   string `json:"__count,omitempty"`
		Next    string `json:"__next,omitempty"`
	} `json:"d"`
}

// odataDeferred wraps an expanded navigation property
type odataDeferred[T any] struct {
	Results []T `json:"results"`
}

// odataError is the error body of an OData V2 service
type odataError struct {
	Error struct {
		Code    string `json:"code"`
		Message struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

// sapProduct is an A_Product entity
type sapProduct struct {
	Product             string                               `json:"Product"`
	ProductType         string                               `json:"ProductType"`
	BaseUnit            string                               `json:"BaseUnit"`
	IsMarkedForDeletion bool                                 `json:"IsMarkedForDeletion"`
	LastChangeDateTime  string                               `json:"LastChangeDateTime"`
	CreationDate        string                               `json:"CreationDate"`
	Description         odataDeferred[sapProductDescription] `json:"to_Description"`
	Valuation           odataDeferred[sapProductValuation]   `json:"to_Valuation"`
}

type sapProductDescription struct {
	Language           string `json:"Language"`
	ProductDescription string `json:"ProductDescription"`
}

type sapProductValuation struct {
	ValuationArea string `json:"ValuationArea"`
	StandardPrice string `json:"StandardPrice"`
	Currency      string `json:"Currency"`
}

// sapBusinessPartner is an A_BusinessPartner entity
type sapBusinessPartner struct {
	BusinessPartner          string                           `json:"BusinessPartner"`
	BusinessPartnerFullName  string                           `json:"BusinessPartnerFullName"`
	BusinessPartnerIsBlocked bool                             `json:"BusinessPartnerIsBlocked"`
	LastChangeDate           string                           `json:"LastChangeDate"`
	LastChangeTime           string                           `json:"LastChangeTime"`
	CreationDate             string                           `json:"CreationDate"`
	Addresses                odataDeferred[sapPartnerAddress] `json:"to_BusinessPartnerAddress"`
}

type sapPartnerAddress struct {
	Emails odataDeferred[sapEmailAddress] `json:"to_EmailAddress"`
	Phones odataDeferred[sapPhoneNumber]  `json:"to_PhoneNumber"`
}

type sapEmailAddress struct {
	EmailAddress string `json:"EmailAddress"`
}

type sapPhoneNumber struct {
	PhoneNumber string `json:"PhoneNumber"`
}

// sapSalesOrderCreate is the deep-insert payload for A_SalesOrder
type sapSalesOrderCreate struct {
	SalesOrderType          string                                 `json:"SalesOrderType"`
	SalesOrganization       string                                 `json:"SalesOrganization"`
	DistributionChannel     string                                 `json:"DistributionChannel"`
	OrganizationDivision    string                                 `json:"OrganizationDivision"`
	SoldToParty             string                                 `json:"SoldToParty"`
	PurchaseOrderByCustomer string                                 `json:"PurchaseOrderByCustomer"`
	TransactionCurrency     string                                 `json:"TransactionCurrency"`
	Items                   odataDeferred[sapSalesOrderItemCreate] `json:"to_Item"`
}

type sapSalesOrderItemCreate struct {
	SalesOrderItem    string `json:"SalesOrderItem"`
	Material          string `json:"Material"`
	RequestedQuantity string `json:"RequestedQuantity"`
	NetPriceAmount    string `json:"NetPriceAmount,omitempty"`
}

// sapSalesOrder is an A_SalesOrder entity as returned after creation
type sapSalesOrder struct {
	SalesOrder               string `json:"SalesOrder"`
	PurchaseOrderByCustomer  string `json:"PurchaseOrderByCustomer"`
	SoldToParty              string `json:"SoldToParty"`
	TransactionCurrency      string `json:"TransactionCurrency"`
	TotalNetAmount           string `json:"TotalNetAmount"`
	OverallSDProcessStatus   string `json:"OverallSDProcessStatus"`
	HeaderBillingBlockReason string `json:"HeaderBillingBlockReason"`
	DeliveryBlockReason      string `json:"DeliveryBlockReason"`
	TotalCreditCheckStatus   string `json:"TotalCreditCheckStatus"`
	CreationDate             string `json:"CreationDate"`
}

// ---------------------------------------------------------------------------
// OData V2 literals
// ---------------------------------------------------------------------------

// parseODataDate parses "/Date(1492041600000)/" and "/Date(1492041600000+0000)/"
func parseODataDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	inner, ok := strings.CutPrefix(s, "/Date(")
	if ok {
		inner, ok = strings.CutSuffix(inner, ")/")
	}
	if !ok {
		return time.Time{}, fmt.Errorf("sap: malformed date %q", s)
	}

	// the millisecond value is UTC; a trailing +hhmm only names the source zone
	if i := strings.IndexAny(inner, "+-"); i > 0 {
		if _, err := strconv.Atoi(inner[i+1:]); err != nil {
			return time.Time{}, fmt.Errorf("sap: malformed date offset %q", s)
		}
		inner = inner[:i]
	}
	ms, err := strconv.ParseInt(inner, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("sap: malformed date %q", s)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// parseODataTime parses an Edm.Time duration such as "PT14H03M07S"
func parseODataTime(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "PT%dH%dM%dS", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("sap: malformed time %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// formatODataDateTimeOffset renders a filter literal for Edm.DateTimeOffset
func formatODataDateTimeOffset(t time.Time) string {
	return "datetimeoffset'" + t.UTC().Format("2006-01-02T15:04:05.0000000Z") + "'"
}

// formatODataDateTime renders a filter literal for Edm.DateTime (date precision)
func formatODataDateTime(t time.Time) string {
	return "datetime'" + t.UTC().Format("2006-01-02") + "T00:00:00'"
}

// sapKey renders an entity key segment: A_Product('X')
func sapKey(set, id string) string {
	return set + "(" + url.PathEscape(quoteLiteral(id)) + ")"
}
