package challenge

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gatehouse/internal/config"
	"gatehouse/internal/support"
)

const challengeKeyPrefix = "gatehouse:captcha:"

var ErrUnavailable = errors.New("challenge: store unavailable")

// verifyScript implements the compare-and-set verification: a challenge is
// consumed by at most one successful attempt, even under concurrent submits.
// Returns the stored source address on success, false otherwise. Expired
// challenges are gone from Redis entirely, so "expired" and "never existed"
// are indistinguishable to the caller.
var verifyScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return false
end
if redis.call("HGET", KEYS[1], "solved") == "1" then
	return false
end
if redis.call("HGET", KEYS[1], "answer") == ARGV[1] then
	redis.call("HSET", KEYS[1], "solved", "1")
	return redis.call("HGET", KEYS[1], "address")
end
return false`)

// puzzle is one arithmetic CAPTCHA: two operands in [1, operandMax] and a
// random + or - operator.
type puzzle struct {
	a, b     int
	operator byte
}

func newPuzzle(operandMax int) puzzle {
	if operandMax < 2 {
		operandMax = 2
	}
	p := puzzle{
		a:        1 + rand.IntN(operandMax),
		b:        1 + rand.IntN(operandMax),
		operator: '+',
	}
	if rand.IntN(2) == 1 {
		p.operator = '-'
	}
	return p
}

func (p puzzle) Question() string {
	return fmt.Sprintf("what is %d %c %d?", p.a, p.operator, p.b)
}

func (p puzzle) Answer() int {
	if p.operator == '-' {
		return p.a - p.b
	}
	return p.a + p.b
}

// Create issues a new challenge for the address and returns the opaque id
// plus the human-readable question. The answer never leaves the store.
func Create(ctx context.Context, address string) (string, string, error) {
	client, err := support.GetRedisClient()
	if err != nil {
		return "", "", fmt.Errorf("challenge: redis client: %w", err)
	}

	p := newPuzzle(config.CaptchaOperandMax())
	id := uuid.NewString()
	key := challengeKeyPrefix + id
	ttl := config.CaptchaTTL()

	pipe := client.TxPipeline()
	pipe.HSet(ctx, key,
		"address", address,
		"answer", strconv.Itoa(p.Answer()),
		"solved", "0",
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", "", fmt.Errorf("challenge: persist: %w", err)
	}

	return id, p.Question(), nil
}

// Verify checks a submitted solution against the stored one. It succeeds at
// most once per challenge id; solved, expired, and unknown ids all fail the
// same way. On success it returns the address the challenge was issued for,
// so the caller can apply the score amnesty.
func Verify(ctx context.Context, challengeID, solution string) (bool, string, error) {
	normalized, ok := normalizeSolution(solution)
	if !ok {
		return false, "", nil
	}

	client, err := support.GetRedisClient()
	if err != nil {
		return false, "", ErrUnavailable
	}

	res, err := verifyScript.Run(ctx, client, []string{challengeKeyPrefix + challengeID}, normalized).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("challenge: verify: %w", err)
	}

	address, ok := res.(string)
	if !ok || address == "" {
		return false, "", nil
	}
	return true, address, nil
}

// normalizeSolution maps the submitted value onto the canonical decimal form
// the answer is stored in, so "07", " 7 " and 7 all compare equal.
func normalizeSolution(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(value), true
}
