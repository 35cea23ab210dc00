package redis

const (
	// finalizeScript writes a history entry and then the session record.
	// Running both as one script keeps the history write ordered before the
	// session write and makes the pair atomic.
	finalizeScript = `
local history_key = KEYS[1]   -- {prefix}:usageHistory
local session_key = KEYS[2]   -- {prefix}:sessionState

local day = ARGV[1]
local usage_millis = ARGV[2]
local session = ARGV[3]

redis.call('HSET', history_key, day, usage_millis)
redis.call('SET', session_key, session)

return 'OK'
`
)
