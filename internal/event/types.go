package event

import (
	"strings"

	"beacon/internal/store"
)

// MessageType tags a raw event and selects which optional sub-structures are
// meaningful. The numeric values are part of the wire contract.
type MessageType int

const (
	SessionStart       MessageType = 1
	SessionEnd         MessageType = 2
	PageView           MessageType = 3
	PageEvent          MessageType = 4
	CrashReport        MessageType = 5
	OptOut             MessageType = 6
	AppStateTransition MessageType = 10
	Profile            MessageType = 14
	Commerce           MessageType = 16
)

// Category is the coarse event classification carried under the `et` key.
type Category int

const (
	CategoryUnknown        Category = 0
	CategoryNavigation     Category = 1
	CategoryLocation       Category = 2
	CategorySearch         Category = 3
	CategoryTransaction    Category = 4
	CategoryUserContent    Category = 5
	CategoryUserPreference Category = 6
	CategorySocial         Category = 7
	CategoryOther          Category = 8
	CategoryMedia          Category = 9
)

// TransitionAppInit is the only application transition subtype represented on
// the wire; every app-state-transition event is projected with it.
const TransitionAppInit = 1

// ProfileLogout is the profile message subtype carried under `pet`.
const ProfileLogout = 3

// IdentityType is the normalized identity enumeration used to re-key
// provider-specific identity maps.
type IdentityType int

const (
	IdentityOther                    IdentityType = 0
	IdentityCustomerID               IdentityType = 1
	IdentityFacebook                 IdentityType = 2
	IdentityTwitter                  IdentityType = 3
	IdentityGoogle                   IdentityType = 4
	IdentityMicrosoft                IdentityType = 5
	IdentityYahoo                    IdentityType = 6
	IdentityEmail                    IdentityType = 7
	IdentityFacebookCustomAudienceID IdentityType = 9
)

var identityTypesByKey = map[string]IdentityType{
	"other":                    IdentityOther,
	"customerid":               IdentityCustomerID,
	"facebook":                 IdentityFacebook,
	"twitter":                  IdentityTwitter,
	"google":                   IdentityGoogle,
	"microsoft":                IdentityMicrosoft,
	"yahoo":                    IdentityYahoo,
	"email":                    IdentityEmail,
	"facebookcustomaudienceid": IdentityFacebookCustomAudienceID,
}

// IdentityTypeForKey normalizes a provider identity key. Unknown keys return
// false and are dropped by enrichment.
func IdentityTypeForKey(key string) (IdentityType, bool) {
	t, ok := identityTypesByKey[strings.ToLower(key)]
	return t, ok
}

// GDPRConsent is one per-purpose consent record. Fields are loosely typed on
// purpose: consent payloads arrive from untrusted JSON and projection keeps a
// field only when its value has the exact expected primitive type.
type GDPRConsent struct {
	Consented  interface{} `json:"consented"`
	Timestamp  interface{} `json:"timestamp"`
	Document   interface{} `json:"document"`
	Location   interface{} `json:"location"`
	HardwareID interface{} `json:"hardware_id"`
}

// ConsentState is the per-user consent snapshot, keyed by purpose.
type ConsentState struct {
	GDPR map[string]GDPRConsent `json:"gdpr"`
}

// Product is a commerce line item as received. Numeric-looking fields stay
// untyped because callers send both numbers and numeric strings.
type Product struct {
	SKU         interface{}            `json:"sku"`
	Name        interface{}            `json:"name"`
	Price       interface{}            `json:"price"`
	Quantity    interface{}            `json:"quantity"`
	Brand       interface{}            `json:"brand"`
	Variant     interface{}            `json:"variant"`
	Category    interface{}            `json:"category"`
	Position    interface{}            `json:"position"`
	CouponCode  interface{}            `json:"coupon_code"`
	TotalAmount interface{}            `json:"total_amount"`
	Attributes  map[string]interface{} `json:"attributes"`
}

type ShoppingCart struct {
	Products []Product `json:"products"`
}

type ProductAction struct {
	Type            string      `json:"type"`
	CheckoutStep    interface{} `json:"checkout_step"`
	CheckoutOptions string      `json:"checkout_options"`
	Products        []Product   `json:"products"`
	TransactionID   string      `json:"transaction_id"`
	Affiliation     string      `json:"affiliation"`
	CouponCode      string      `json:"coupon_code"`
	TotalAmount     interface{} `json:"total_amount"`
	ShippingAmount  interface{} `json:"shipping_amount"`
	TaxAmount       interface{} `json:"tax_amount"`
}

type Promotion struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Creative string      `json:"creative"`
	Position interface{} `json:"position"`
}

type PromotionAction struct {
	Type       string      `json:"type"`
	Promotions []Promotion `json:"promotions"`
}

type ProductImpression struct {
	ListName string    `json:"list_name"`
	Products []Product `json:"products"`
}

// Fields is the self-description a raw event contributes to enrichment:
// either synthesized from the raw event or supplied verbatim by an Override.
type Fields struct {
	EventName       interface{}
	EventCategory   Category
	EventAttributes map[string]interface{}
	EventDataType   MessageType
	CustomFlags     map[string]interface{}
}

// Override lets a raw event supply its own fully-expanded Fields instead of
// the synthesized defaults.
type Override interface {
	EventAPIObject() Fields
}

// RawEvent is one application event as submitted by a client.
type RawEvent struct {
	MessageType MessageType            `json:"message_type"`
	Name        string                 `json:"name"`
	Category    Category               `json:"event_type"`
	Data        map[string]interface{} `json:"data"`
	CustomFlags map[string]interface{} `json:"custom_flags"`

	ShoppingCart       *ShoppingCart       `json:"shopping_cart,omitempty"`
	ProductAction      *ProductAction      `json:"product_action,omitempty"`
	PromotionAction    *PromotionAction    `json:"promotion_action,omitempty"`
	ProductImpressions []ProductImpression `json:"product_impressions,omitempty"`

	ProfileMessageType int `json:"profile_message_type,omitempty"`

	// Override is an in-process capability, never decoded from the wire.
	Override Override `json:"-"`
}

// User is the resolved current-user view consumed by enrichment.
type User struct {
	MPID         string                 `json:"mpid"`
	Identities   map[string]string      `json:"identities"`
	Attributes   map[string]interface{} `json:"attributes"`
	ConsentState *ConsentState          `json:"consent_state"`
}

// EnrichedEvent is the intermediate record produced by enrichment: the
// event's own fields merged with a snapshot of all contextual fields needed
// for transmission. It is a value object, never mutated after construction.
type EnrichedEvent struct {
	EventName       interface{}
	EventCategory   Category
	EventAttributes map[string]interface{}
	EventDataType   MessageType
	CustomFlags     map[string]interface{}

	SessionLength       *int64
	CurrentSessionMPIDs []string
	ProfileMessageType  int

	ShoppingCart       *ShoppingCart
	ProductAction      *ProductAction
	PromotionAction    *PromotionAction
	ProductImpressions []ProductImpression

	UserAttributes        map[string]interface{}
	UserIdentities        map[IdentityType]string
	ServerSettings        map[string]interface{}
	SDKVersion            string
	SessionID             string
	SessionStartMS        *int64
	Debug                 bool
	Location              *store.Location
	OptOut                *bool
	ExpandedEventCount    int
	AppVersion            string
	ClientGeneratedID     string
	DeviceID              string
	MPID                  string
	ConsentState          *ConsentState
	IntegrationAttributes map[string]map[string]string
	PageURL               string
	Timestamp             int64
}
