package utils

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

// DailyCodeLength is the fixed length of a mining daily code.
const DailyCodeLength = 10

var codeSpan = big.NewInt(9_000_000_000)

// GenerateDailyCode creates a uniform random 10-digit numeric code in
// [1000000000, 9999999999].
func GenerateDailyCode() string {
	v, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		// fallback to time based value if crypto fails
		v = big.NewInt(time.Now().UnixNano() % 9_000_000_000)
	}
	return strconv.FormatInt(v.Int64()+1_000_000_000, 10)
}

// TryReserveCode claims a code in Redis for ttl using SETNX so concurrent
// issuers cannot hand out the same code. Returns true when the code was free.
// Without Redis it reports true; the database collision check still applies.
func TryReserveCode(code string, ttl time.Duration) bool {
	rc := GetRedis()
	if rc == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := rc.SetNX(ctx, "code:active:"+code, "1", ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// ReleaseCode drops a Redis code reservation, for when mining state is reset
// before the reservation expires on its own.
func ReleaseCode(code string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = rc.Del(ctx, "code:active:"+code).Err()
}
