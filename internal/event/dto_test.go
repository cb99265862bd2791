package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrichedFixture(mt MessageType) *EnrichedEvent {
	return &EnrichedEvent{
		EventName:         "test event",
		EventCategory:     CategoryOther,
		EventAttributes:   map[string]interface{}{"k": "v"},
		EventDataType:     mt,
		UserAttributes:    map[string]interface{}{"plan": "pro"},
		UserIdentities:    map[IdentityType]string{IdentityCustomerID: "c-1"},
		SDKVersion:        "2.4.1",
		SessionID:         "sess-1",
		AppVersion:        "1.0.0",
		ClientGeneratedID: "cg-1",
		DeviceID:          "dev-1",
		MPID:              "mpid-1",
		Timestamp:         1700000000000,
	}
}

func TestConvertEventToDTOBaseKeys(t *testing.T) {
	ev := enrichedFixture(PageEvent)
	dto := ConvertEventToDTO(ev, false, "")

	assert.Equal(t, "test event", dto["n"])
	assert.Equal(t, CategoryOther, dto["et"])
	assert.Equal(t, ev.UserAttributes, dto["ua"])
	assert.Equal(t, ev.UserIdentities, dto["ui"])
	assert.Equal(t, ev.EventAttributes, dto["attrs"])
	assert.Equal(t, "2.4.1", dto["sdk"])
	assert.Equal(t, "sess-1", dto["sid"])
	assert.Equal(t, PageEvent, dto["dt"])
	assert.Equal(t, int64(1700000000000), dto["ct"])
	assert.Equal(t, "mpid-1", dto["mpid"])
	assert.Equal(t, "dev-1", dto["das"])
	assert.Equal(t, "cg-1", dto["cgid"])
	assert.Equal(t, "1.0.0", dto["av"])
	assert.Equal(t, 0, dto["eec"])

	// Nullable base fields are explicit nulls, optional ones are absent.
	assert.Contains(t, dto, "o")
	assert.Nil(t, dto["o"])
	assert.Contains(t, dto, "lc")
	assert.Nil(t, dto["lc"])
	assert.Contains(t, dto, "ssd")
	assert.Nil(t, dto["ssd"])
	assert.NotContains(t, dto, "sl")
	assert.NotContains(t, dto, "smpids")
	assert.NotContains(t, dto, "con")
	assert.NotContains(t, dto, "flags")
	assert.NotContains(t, dto, "cu")
	assert.NotContains(t, dto, "pet")
}

func TestConvertEventToDTODataTypeRoundTrip(t *testing.T) {
	for _, mt := range []MessageType{SessionStart, SessionEnd, PageView, PageEvent, CrashReport, OptOut, AppStateTransition, Profile, Commerce} {
		dto := ConvertEventToDTO(enrichedFixture(mt), false, "USD")
		assert.Equal(t, mt, dto["dt"])
	}
}

func TestConvertEventToDTOCommercePurchase(t *testing.T) {
	ev := enrichedFixture(Commerce)
	ev.ProductAction = &ProductAction{
		Type:        "purchase",
		TotalAmount: float64(42),
		Products:    []Product{{SKU: "A1", Price: "10"}},
	}

	dto := ConvertEventToDTO(ev, false, "USD")

	assert.Equal(t, Commerce, dto["dt"])
	assert.Equal(t, "USD", dto["cu"])

	pd := dto["pd"].(map[string]interface{})
	assert.Equal(t, "purchase", pd["an"])
	assert.Equal(t, float64(42), pd["tr"])
	assert.NotContains(t, pd, "cs")
	assert.NotContains(t, pd, "ts")
	assert.NotContains(t, pd, "tt")

	pl := pd["pl"].([]map[string]interface{})
	require.Len(t, pl, 1)
	assert.Equal(t, map[string]interface{}{"id": "A1", "pr": float64(10)}, pl[0])

	assert.NotContains(t, dto, "pm")
	assert.NotContains(t, dto, "pi")
	assert.NotContains(t, dto, "sc")
}

func TestConvertEventToDTOCommerceExclusivity(t *testing.T) {
	cart := &ShoppingCart{Products: []Product{{SKU: "B2"}}}
	action := &ProductAction{Type: "add_to_cart", Products: []Product{{SKU: "B2"}}}
	promo := &PromotionAction{Type: "view", Promotions: []Promotion{{ID: "p1", Name: "banner", Creative: "top", Position: float64(2)}}}
	impressions := []ProductImpression{{ListName: "featured", Products: []Product{{SKU: "C3"}}}}

	tests := []struct {
		name    string
		mutate  func(*EnrichedEvent)
		wantKey string
	}{
		{
			name: "product action wins over promotion and impressions",
			mutate: func(ev *EnrichedEvent) {
				ev.ProductAction = action
				ev.PromotionAction = promo
				ev.ProductImpressions = impressions
			},
			wantKey: "pd",
		},
		{
			name: "promotion wins over impressions",
			mutate: func(ev *EnrichedEvent) {
				ev.PromotionAction = promo
				ev.ProductImpressions = impressions
			},
			wantKey: "pm",
		},
		{
			name: "impressions alone",
			mutate: func(ev *EnrichedEvent) {
				ev.ProductImpressions = impressions
			},
			wantKey: "pi",
		},
		{
			name:    "no commerce sub-structure emits none",
			mutate:  func(*EnrichedEvent) {},
			wantKey: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := enrichedFixture(Commerce)
			ev.ShoppingCart = cart
			tt.mutate(ev)

			dto := ConvertEventToDTO(ev, false, "USD")

			present := 0
			for _, key := range []string{"pd", "pm", "pi"} {
				if _, ok := dto[key]; ok {
					present++
					assert.Equal(t, tt.wantKey, key)
				}
			}
			if tt.wantKey == "" {
				assert.Zero(t, present)
			} else {
				assert.Equal(t, 1, present)
			}

			// The cart snapshot co-occurs with any of them.
			sc := dto["sc"].(map[string]interface{})
			assert.Len(t, sc["pl"], 1)
		})
	}
}

func TestConvertEventToDTOPromotionPositionDefaultsToZero(t *testing.T) {
	ev := enrichedFixture(Commerce)
	ev.PromotionAction = &PromotionAction{
		Type:       "click",
		Promotions: []Promotion{{ID: "p1", Name: "hero", Creative: "main"}},
	}

	dto := ConvertEventToDTO(ev, false, "")
	assert.Contains(t, dto, "cu")
	assert.Nil(t, dto["cu"])

	pm := dto["pm"].(map[string]interface{})
	promos := pm["pl"].([]map[string]interface{})
	require.Len(t, promos, 1)
	assert.Equal(t, float64(0), promos[0]["ps"])
}

func TestConvertEventToDTOAppStateTransition(t *testing.T) {
	ev := enrichedFixture(AppStateTransition)
	ev.PageURL = "https://example.com/landing"

	dto := ConvertEventToDTO(ev, true, "")

	assert.Equal(t, true, dto["fr"])
	assert.Equal(t, false, dto["iu"])
	assert.Equal(t, TransitionAppInit, dto["at"])
	assert.Equal(t, "https://example.com/landing", dto["lr"])
	assert.Nil(t, dto["attrs"])

	dto = ConvertEventToDTO(enrichedFixture(AppStateTransition), false, "")
	assert.Equal(t, false, dto["fr"])
	assert.Nil(t, dto["lr"])
	assert.Nil(t, dto["attrs"])
}

func TestConvertEventToDTOProfile(t *testing.T) {
	ev := enrichedFixture(Profile)
	ev.ProfileMessageType = ProfileLogout

	dto := ConvertEventToDTO(ev, false, "")
	assert.Equal(t, ProfileLogout, dto["pet"])
}

func TestConvertEventToDTOConsentAndFlags(t *testing.T) {
	ev := enrichedFixture(PageEvent)
	ev.ConsentState = &ConsentState{GDPR: map[string]GDPRConsent{
		"marketing": {Consented: true},
	}}
	ev.CustomFlags = map[string]interface{}{"Tag": []interface{}{"a"}}

	dto := ConvertEventToDTO(ev, false, "")

	con := dto["con"].(map[string]interface{})
	gdpr := con["gdpr"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"c": true}, gdpr["marketing"])

	assert.Equal(t, map[string][]string{"Tag": {"a"}}, dto["flags"])
}

func TestConvertEventToDTOOmitsFlagsWhenAllValuesRejected(t *testing.T) {
	ev := enrichedFixture(PageEvent)
	ev.CustomFlags = map[string]interface{}{
		"Bad":   map[string]interface{}{"nested": true},
		"Empty": []interface{}{},
	}

	dto := ConvertEventToDTO(ev, false, "")
	assert.NotContains(t, dto, "flags")
}

func TestConvertEventToDTOSessionEndFields(t *testing.T) {
	ev := enrichedFixture(SessionEnd)
	length := int64(60000)
	start := int64(1700000000000)
	ev.SessionLength = &length
	ev.SessionStartMS = &start
	ev.CurrentSessionMPIDs = []string{"mpid-1", "mpid-2"}

	dto := ConvertEventToDTO(ev, false, "")
	assert.Equal(t, int64(60000), dto["sl"])
	assert.Equal(t, start, dto["ssd"])
	assert.Equal(t, []string{"mpid-1", "mpid-2"}, dto["smpids"])
}
