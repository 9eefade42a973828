package constants

import (
	"time"

	"github.com/google/uuid"
)

// Redis key layout: seatbook:{module}:{kind}:{identifier}

const (
	CACHE_PREFIX = "seatbook"
)

// ================== RESERVATION LEDGER ==================

const (
	// value: holder-id|event-id|expires-at-ms, PX set to the hold TTL
	LEDGER_KEY_SEAT = CACHE_PREFIX + ":holds:seat:" // + seat-id
	// set of seat ids a holder may still own; members are checked against the seat keys on read
	LEDGER_KEY_HOLDER = CACHE_PREFIX + ":holds:holder:" // + holder-id
)

// ================== EVENT CATALOG ==================

const (
	CACHE_KEY_EVENT_DETAIL = CACHE_PREFIX + ":events:detail:uuid:" // + event-id
	CACHE_KEY_EVENT_PRICES = CACHE_PREFIX + ":events:prices:uuid:" // + event-id

	PATTERN_INVALIDATE_EVENT = CACHE_PREFIX + ":events:*:uuid:" // + event-id
)

const (
	TTL_EVENT_DETAIL = 2 * time.Minute
	TTL_EVENT_PRICES = 10 * time.Minute
)

// ================== RATE LIMITING ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit:"
)

func BuildLedgerSeatKey(seatID uuid.UUID) string {
	return LEDGER_KEY_SEAT + seatID.String()
}

func BuildLedgerHolderKey(holderID uuid.UUID) string {
	return LEDGER_KEY_HOLDER + holderID.String()
}

func BuildEventDetailKey(eventID uuid.UUID) string {
	return CACHE_KEY_EVENT_DETAIL + eventID.String()
}

func BuildEventPricesKey(eventID uuid.UUID) string {
	return CACHE_KEY_EVENT_PRICES + eventID.String()
}

func BuildEventInvalidationPattern(eventID uuid.UUID) string {
	return PATTERN_INVALIDATE_EVENT + eventID.String()
}
