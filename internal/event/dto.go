package event

import "beacon/pkg/parse"

// ConvertEventToDTO projects an enriched event into the abbreviated-key wire
// record. The key table is a fixed, versioned contract with the ingestion
// endpoint; keys for absent optional fields are left out of the map entirely,
// while fields the schema carries as nullable are set to an explicit nil.
func ConvertEventToDTO(ev *EnrichedEvent, isFirstRun bool, currencyCode string) map[string]interface{} {
	dto := map[string]interface{}{
		"n":     ev.EventName,
		"et":    ev.EventCategory,
		"ua":    ev.UserAttributes,
		"ui":    ev.UserIdentities,
		"ia":    ev.IntegrationAttributes,
		"str":   ev.ServerSettings,
		"attrs": ev.EventAttributes,
		"sdk":   ev.SDKVersion,
		"sid":   ev.SessionID,
		"dt":    ev.EventDataType,
		"dbg":   ev.Debug,
		"ct":    ev.Timestamp,
		"eec":   ev.ExpandedEventCount,
		"av":    ev.AppVersion,
		"cgid":  ev.ClientGeneratedID,
		"das":   ev.DeviceID,
		"mpid":  ev.MPID,
	}

	if ev.Location != nil {
		dto["lc"] = ev.Location
	} else {
		dto["lc"] = nil
	}
	if ev.OptOut != nil {
		dto["o"] = *ev.OptOut
	} else {
		dto["o"] = nil
	}
	if ev.SessionStartMS != nil {
		dto["ssd"] = *ev.SessionStartMS
	} else {
		dto["ssd"] = nil
	}
	if ev.SessionLength != nil {
		dto["sl"] = *ev.SessionLength
	}
	if ev.CurrentSessionMPIDs != nil {
		dto["smpids"] = ev.CurrentSessionMPIDs
	}

	if consent := ConvertConsentStateDTO(ev.ConsentState); consent != nil {
		dto["con"] = consent
	}

	if ev.EventDataType == AppStateTransition {
		dto["fr"] = isFirstRun
		dto["iu"] = false
		dto["at"] = TransitionAppInit
		if ev.PageURL != "" {
			dto["lr"] = ev.PageURL
		} else {
			dto["lr"] = nil
		}
		// Transition events never carry custom attributes on the wire.
		dto["attrs"] = nil
	}

	if flags := ConvertCustomFlags(ev.CustomFlags); len(flags) > 0 {
		dto["flags"] = flags
	}

	switch ev.EventDataType {
	case Commerce:
		projectCommerce(dto, ev, currencyCode)
	case Profile:
		dto["pet"] = ev.ProfileMessageType
	}

	return dto
}

func projectCommerce(dto map[string]interface{}, ev *EnrichedEvent, currencyCode string) {
	if currencyCode != "" {
		dto["cu"] = currencyCode
	} else {
		dto["cu"] = nil
	}

	if ev.ShoppingCart != nil {
		dto["sc"] = map[string]interface{}{
			"pl": convertProductListDTO(ev.ShoppingCart.Products),
		}
	}

	// Product action, promotion action and impressions are mutually
	// exclusive, in that precedence order.
	switch {
	case ev.ProductAction != nil:
		dto["pd"] = convertProductActionDTO(ev.ProductAction)
	case ev.PromotionAction != nil:
		dto["pm"] = convertPromotionActionDTO(ev.PromotionAction)
	case ev.ProductImpressions != nil:
		impressions := make([]map[string]interface{}, 0, len(ev.ProductImpressions))
		for _, imp := range ev.ProductImpressions {
			impressions = append(impressions, map[string]interface{}{
				"pil": imp.ListName,
				"pl":  convertProductListDTO(imp.Products),
			})
		}
		dto["pi"] = impressions
	}
}

func convertProductActionDTO(pa *ProductAction) map[string]interface{} {
	d := map[string]interface{}{
		"an": pa.Type,
		"pl": convertProductListDTO(pa.Products),
	}
	setNumber(d, "cs", pa.CheckoutStep)
	setString(d, "co", pa.CheckoutOptions)
	setString(d, "ti", pa.TransactionID)
	setString(d, "ta", pa.Affiliation)
	setString(d, "tcc", pa.CouponCode)
	setNumber(d, "tr", pa.TotalAmount)
	setNumber(d, "ts", pa.ShippingAmount)
	setNumber(d, "tt", pa.TaxAmount)
	return d
}

func convertPromotionActionDTO(pm *PromotionAction) map[string]interface{} {
	promos := make([]map[string]interface{}, 0, len(pm.Promotions))
	for _, p := range pm.Promotions {
		ps := float64(0)
		if n, ok := parse.Number(p.Position); ok {
			ps = n
		}
		promos = append(promos, map[string]interface{}{
			"id": p.ID,
			"nm": p.Name,
			"cr": p.Creative,
			"ps": ps,
		})
	}
	return map[string]interface{}{
		"an": pm.Type,
		"pl": promos,
	}
}

func convertProductListDTO(products []Product) []map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(products))
	for _, p := range products {
		list = append(list, convertProductDTO(p))
	}
	return list
}

func convertProductDTO(p Product) map[string]interface{} {
	d := make(map[string]interface{})
	setStringOrNumber(d, "id", p.SKU)
	setStringOrNumber(d, "nm", p.Name)
	setNumber(d, "pr", p.Price)
	setNumber(d, "qt", p.Quantity)
	setStringOrNumber(d, "br", p.Brand)
	setStringOrNumber(d, "va", p.Variant)
	setStringOrNumber(d, "ca", p.Category)
	setNumber(d, "ps", p.Position)
	setStringOrNumber(d, "cc", p.CouponCode)
	setNumber(d, "tpa", p.TotalAmount)
	if p.Attributes != nil {
		d["attrs"] = p.Attributes
	}
	return d
}

func setNumber(d map[string]interface{}, key string, v interface{}) {
	if n, ok := parse.Number(v); ok {
		d[key] = n
	}
}

func setStringOrNumber(d map[string]interface{}, key string, v interface{}) {
	if sn := parse.StringOrNumber(v); sn != nil {
		d[key] = sn
	}
}

// setString treats the empty string as absent, so these keys never appear
// with an empty value on the wire.
func setString(d map[string]interface{}, key, v string) {
	if v != "" {
		d[key] = v
	}
}
