package event

import (
	"fmt"
	"time"

	"beacon/internal/store"
	"beacon/pkg/sanitize"
)

// Enrich merges a raw event with the ambient session and user context into an
// EnrichedEvent ready for projection.
//
// A (nil, nil) return means the event is not transmittable right now: there
// is no active session, the event is not an opt-out, and the store is not in
// bridged mode. The only error case is a session-end event captured without a
// session start time, which is a caller bug surfaced loudly instead of
// propagating a garbage session length.
func Enrich(ev *RawEvent, st *store.Store, user User) (*EnrichedEvent, error) {
	return EnrichAt(ev, st, user, time.Now())
}

// EnrichAt is Enrich with an explicit clock reading, used by tests and by
// replay tooling.
func EnrichAt(ev *RawEvent, st *store.Store, user User, now time.Time) (*EnrichedEvent, error) {
	snap, end, err := st.Capture(ev.MessageType == OptOut, ev.MessageType == SessionEnd, now)
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	if snap == nil {
		return nil, nil
	}

	fields := eventFields(ev)

	identities := make(map[IdentityType]string, len(user.Identities))
	for key, value := range user.Identities {
		if t, ok := IdentityTypeForKey(key); ok {
			identities[t] = value
		}
	}

	var optOut *bool
	if ev.MessageType == OptOut {
		v := !snap.Enabled
		optOut = &v
	}

	userAttrs := user.Attributes
	if userAttrs == nil {
		userAttrs = make(map[string]interface{})
	}

	enriched := &EnrichedEvent{
		EventName:       fields.EventName,
		EventCategory:   fields.EventCategory,
		EventAttributes: fields.EventAttributes,
		EventDataType:   fields.EventDataType,
		CustomFlags:     fields.CustomFlags,

		ProfileMessageType: ev.ProfileMessageType,
		ShoppingCart:       ev.ShoppingCart,
		ProductAction:      ev.ProductAction,
		PromotionAction:    ev.PromotionAction,
		ProductImpressions: ev.ProductImpressions,

		UserAttributes:        userAttrs,
		UserIdentities:        identities,
		ServerSettings:        snap.ServerSettings,
		SDKVersion:            snap.SDKVersion,
		SessionID:             snap.SessionID,
		SessionStartMS:        snap.SessionStartMS,
		Debug:                 snap.Debug,
		Location:              snap.Location,
		OptOut:                optOut,
		AppVersion:            snap.AppVersion,
		ClientGeneratedID:     snap.ClientID,
		DeviceID:              snap.DeviceID,
		MPID:                  user.MPID,
		ConsentState:          user.ConsentState,
		IntegrationAttributes: snap.IntegrationAttributes,
		PageURL:               snap.PageURL,
		Timestamp:             snap.LastEventSentMS,
	}

	if end != nil {
		length := end.LengthMS
		enriched.SessionLength = &length
		enriched.CurrentSessionMPIDs = end.MPIDs
		enriched.EventAttributes = end.Attributes
	}

	return enriched, nil
}

// eventFields derives the event's own projected fields: an Override supplies
// them verbatim, otherwise they are synthesized from the raw event, with the
// message type standing in for a missing name and attributes run through the
// sanitizer.
func eventFields(ev *RawEvent) Fields {
	if ev.Override != nil {
		return ev.Override.EventAPIObject()
	}

	var name interface{} = ev.Name
	if ev.Name == "" {
		name = ev.MessageType
	}

	flags := ev.CustomFlags
	if flags == nil {
		flags = make(map[string]interface{})
	}

	return Fields{
		EventName:       name,
		EventCategory:   ev.Category,
		EventAttributes: sanitize.Attributes(ev.Data),
		EventDataType:   ev.MessageType,
		CustomFlags:     flags,
	}
}
