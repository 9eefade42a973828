package reservations

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua script for all-or-nothing seat acquisition.
// Expiry is decided against the caller's clock (ARGV[3]); PX only evicts dead keys.
const luaAcquireSeats = `
-- KEYS[1]      = holder index set
-- KEYS[2..N]   = seat keys
-- ARGV[1] = holder_id
-- ARGV[2] = entry value (holder|event|expires_ms)
-- ARGV[3] = now_ms
-- ARGV[4] = ttl_ms
-- ARGV[5..] = seat ids, aligned with KEYS[2..N]

local now = tonumber(ARGV[3])
local ttl = ARGV[4]
local prefix = ARGV[1] .. "|"

local fresh = {}
for i = 2, #KEYS do
    local current = redis.call("GET", KEYS[i])
    local live = false
    if current then
        local expires = tonumber(string.match(current, "|(%d+)$"))
        live = expires ~= nil and expires > now
    end
    if live and string.sub(current, 1, #prefix) ~= prefix then
        return {0, ARGV[i + 3]}
    end
    if not live then
        table.insert(fresh, ARGV[i + 3])
    end
end

for i = 2, #KEYS do
    redis.call("SET", KEYS[i], ARGV[2], "PX", ttl)
    redis.call("SADD", KEYS[1], ARGV[i + 3])
end
redis.call("PEXPIRE", KEYS[1], ttl)

local reply = {1}
for _, seat_id in ipairs(fresh) do
    table.insert(reply, seat_id)
end
return reply
`

// Lua script releasing only the entries owned by the caller
const luaReleaseSeats = `
-- KEYS[1]    = holder index set
-- KEYS[2..N] = seat keys
-- ARGV[1]    = holder_id
-- ARGV[2..]  = seat ids, aligned with KEYS[2..N]

local prefix = ARGV[1] .. "|"
local released = 0
for i = 2, #KEYS do
    local current = redis.call("GET", KEYS[i])
    if current and string.sub(current, 1, #prefix) == prefix then
        redis.call("DEL", KEYS[i])
        released = released + 1
    end
    redis.call("SREM", KEYS[1], ARGV[i])
end
return released
`

var (
	acquireScript = redis.NewScript(luaAcquireSeats)
	releaseScript = redis.NewScript(luaReleaseSeats)
)

// RedisLedger keeps the reservation ledger in Redis so every instance sees the same claims
type RedisLedger struct {
	redis redis.Cmdable
}

func NewRedisLedger(client redis.Cmdable) *RedisLedger {
	return &RedisLedger{redis: client}
}

// PreloadScripts loads the ledger scripts so the first EVALSHA does not miss
func (l *RedisLedger) PreloadScripts(ctx context.Context) error {
	if err := acquireScript.Load(ctx, l.redis).Err(); err != nil {
		return fmt.Errorf("failed to load acquire script: %w", err)
	}
	if err := releaseScript.Load(ctx, l.redis).Err(); err != nil {
		return fmt.Errorf("failed to load release script: %w", err)
	}
	return nil
}

func (l *RedisLedger) Acquire(ctx context.Context, req AcquireRequest) (*Grant, error) {
	if len(req.SeatIDs) == 0 {
		return nil, fmt.Errorf("%w: no seats to acquire", apperrors.ErrInvalidRequest)
	}
	ttl := req.TTL.Milliseconds()
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: hold ttl must be positive", apperrors.ErrInvalidRequest)
	}

	expiresAt := time.UnixMilli(req.Now.UnixMilli() + ttl).UTC()
	value := encodeEntry(Entry{HolderID: req.HolderID, EventID: req.EventID, ExpiresAt: expiresAt})

	keys := make([]string, 0, len(req.SeatIDs)+1)
	keys = append(keys, constants.BuildLedgerHolderKey(req.HolderID))
	args := []interface{}{
		req.HolderID.String(),
		value,
		strconv.FormatInt(req.Now.UnixMilli(), 10),
		strconv.FormatInt(ttl, 10),
	}
	for _, seatID := range req.SeatIDs {
		keys = append(keys, constants.BuildLedgerSeatKey(seatID))
		args = append(args, seatID.String())
	}

	result, err := acquireScript.Run(ctx, l.redis, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to execute seat acquire: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("unexpected result format from acquire script")
	}

	ok, _ := result[0].(int64)
	if ok == 0 {
		if len(result) < 2 {
			return nil, fmt.Errorf("acquire script rejected without naming a seat")
		}
		seat, err := parseUUID(result[1])
		if err != nil {
			return nil, fmt.Errorf("invalid conflict seat in acquire script result: %w", err)
		}
		return nil, apperrors.Seats(apperrors.ErrSeatContended, seat)
	}

	grant := &Grant{ExpiresAt: expiresAt}
	for _, raw := range result[1:] {
		seat, err := parseUUID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid seat in acquire script result: %w", err)
		}
		grant.Acquired = append(grant.Acquired, seat)
	}
	return grant, nil
}

func (l *RedisLedger) Release(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(seatIDs)+1)
	keys = append(keys, constants.BuildLedgerHolderKey(holderID))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, holderID.String())
	for _, seatID := range seatIDs {
		keys = append(keys, constants.BuildLedgerSeatKey(seatID))
		args = append(args, seatID.String())
	}

	released, err := releaseScript.Run(ctx, l.redis, keys, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to execute seat release: %w", err)
	}
	return released, nil
}

func (l *RedisLedger) Lookup(ctx context.Context, seatIDs []uuid.UUID, now time.Time) (map[uuid.UUID]Entry, error) {
	entries := make(map[uuid.UUID]Entry, len(seatIDs))
	if len(seatIDs) == 0 {
		return entries, nil
	}

	keys := make([]string, len(seatIDs))
	for i, seatID := range seatIDs {
		keys[i] = constants.BuildLedgerSeatKey(seatID)
	}

	values, err := l.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}

	for i, raw := range values {
		value, ok := raw.(string)
		if !ok {
			continue
		}
		entry, err := decodeEntry(seatIDs[i], value)
		if err != nil {
			return nil, err
		}
		if entry.Live(now) {
			entries[entry.SeatID] = entry
		}
	}
	return entries, nil
}

func (l *RedisLedger) HolderEntries(ctx context.Context, holderID uuid.UUID, now time.Time) ([]Entry, error) {
	members, err := l.redis.SMembers(ctx, constants.BuildLedgerHolderKey(holderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read holder index: %w", err)
	}

	seatIDs := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		seatID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		seatIDs = append(seatIDs, seatID)
	}
	sortUUIDs(seatIDs)

	live, err := l.Lookup(ctx, seatIDs, now)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(live))
	for _, seatID := range seatIDs {
		if entry, ok := live[seatID]; ok && entry.HolderID == holderID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// encodeEntry renders the stored value: holder|event|expires-ms
func encodeEntry(e Entry) string {
	return e.HolderID.String() + "|" + e.EventID.String() + "|" + strconv.FormatInt(e.ExpiresAt.UnixMilli(), 10)
}

func decodeEntry(seatID uuid.UUID, value string) (Entry, error) {
	parts := strings.Split(value, "|")
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("malformed ledger entry for seat %s", seatID)
	}
	holderID, err := uuid.Parse(parts[0])
	if err != nil {
		return Entry{}, fmt.Errorf("malformed holder in ledger entry for seat %s: %w", seatID, err)
	}
	eventID, err := uuid.Parse(parts[1])
	if err != nil {
		return Entry{}, fmt.Errorf("malformed event in ledger entry for seat %s: %w", seatID, err)
	}
	expiresMs, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed expiry in ledger entry for seat %s: %w", seatID, err)
	}
	return Entry{
		SeatID:    seatID,
		HolderID:  holderID,
		EventID:   eventID,
		ExpiresAt: time.UnixMilli(expiresMs).UTC(),
	}, nil
}

func parseUUID(raw interface{}) (uuid.UUID, error) {
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("expected string, got %T", raw)
	}
	return uuid.Parse(s)
}
