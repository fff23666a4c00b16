package rediscache

import "github.com/go-redis/redis/v8"

// Both scripts return 0 for a missing key and 1 once the value is joined.

// APPEND keeps the TTL on its own but creates missing keys.
var appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('APPEND', KEYS[1], ARGV[1])
return 1
`)

var prependScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return 0
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1] .. v, 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1] .. v)
end
return 1
`)
