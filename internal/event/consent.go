package event

// ConvertConsentStateDTO projects a consent state into its wire form: a map
// with a `gdpr` key holding one record per purpose. Each record carries only
// the fields whose source value has the exact expected primitive type;
// mismatched or missing fields are omitted, never defaulted. A nil state
// yields nil (no `con` key on the wire); a state without a GDPR map yields an
// empty object with no `gdpr` key.
func ConvertConsentStateDTO(state *ConsentState) map[string]interface{} {
	if state == nil {
		return nil
	}

	dto := make(map[string]interface{})
	if state.GDPR == nil {
		return dto
	}

	gdpr := make(map[string]interface{}, len(state.GDPR))
	for purpose, consent := range state.GDPR {
		record := make(map[string]interface{})
		if c, ok := consent.Consented.(bool); ok {
			record["c"] = c
		}
		if ts, ok := numericValue(consent.Timestamp); ok {
			record["ts"] = ts
		}
		if d, ok := consent.Document.(string); ok {
			record["d"] = d
		}
		if l, ok := consent.Location.(string); ok {
			record["l"] = l
		}
		if h, ok := consent.HardwareID.(string); ok {
			record["h"] = h
		}
		gdpr[purpose] = record
	}
	dto["gdpr"] = gdpr

	return dto
}

// numericValue accepts values that already carry a numeric type. Numeric
// strings do not count here: consent projection requires the exact primitive
// type, unlike the lenient parsing used for commerce amounts.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
