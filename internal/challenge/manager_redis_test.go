package challenge

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"gatehouse/internal/config"
	"gatehouse/internal/support"
)

func setupChallengeStore(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	restore := support.SetRedisClientForTests(client)
	t.Cleanup(func() {
		restore()
		_ = client.Close()
	})

	return mr, client
}

func storedAnswer(t *testing.T, client *redis.Client, id string) string {
	t.Helper()

	answer, err := client.HGet(context.Background(), challengeKeyPrefix+id, "answer").Result()
	if err != nil {
		t.Fatalf("read stored answer: %v", err)
	}
	return answer
}

func TestCreateStoresChallengeWithTTL(t *testing.T) {
	mr, _ := setupChallengeStore(t)

	id, question, err := Create(context.Background(), "192.0.2.50")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" || question == "" {
		t.Fatalf("expected id and question, got %q / %q", id, question)
	}

	key := challengeKeyPrefix + id
	if !mr.Exists(key) {
		t.Fatalf("expected key %s to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > config.CaptchaTTL() {
		t.Fatalf("unexpected TTL %v", ttl)
	}
}

func TestVerifySucceedsExactlyOnce(t *testing.T) {
	_, client := setupChallengeStore(t)
	ctx := context.Background()

	id, _, err := Create(ctx, "192.0.2.51")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	answer := storedAnswer(t, client, id)

	solved, address, err := Verify(ctx, id, answer)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if !solved {
		t.Fatal("first verify with the correct answer should succeed")
	}
	if address != "192.0.2.51" {
		t.Fatalf("address = %q, want 192.0.2.51", address)
	}

	solved, _, err = Verify(ctx, id, answer)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if solved {
		t.Fatal("a solved challenge must not verify again")
	}
}

func TestVerifyWrongAnswerDoesNotConsume(t *testing.T) {
	_, client := setupChallengeStore(t)
	ctx := context.Background()

	id, _, err := Create(ctx, "192.0.2.52")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	answer := storedAnswer(t, client, id)
	n, err := strconv.Atoi(answer)
	if err != nil {
		t.Fatalf("stored answer %q is not numeric: %v", answer, err)
	}

	solved, _, err := Verify(ctx, id, strconv.Itoa(n+1))
	if err != nil {
		t.Fatalf("wrong-answer verify: %v", err)
	}
	if solved {
		t.Fatal("wrong answer should not verify")
	}

	solved, _, err = Verify(ctx, id, answer)
	if err != nil {
		t.Fatalf("retry verify: %v", err)
	}
	if !solved {
		t.Fatal("a failed attempt must not consume the challenge")
	}
}

func TestVerifyUnknownID(t *testing.T) {
	setupChallengeStore(t)

	solved, _, err := Verify(context.Background(), "no-such-challenge", "7")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if solved {
		t.Fatal("unknown challenge id should not verify")
	}
}

func TestVerifyAfterExpiry(t *testing.T) {
	mr, client := setupChallengeStore(t)
	ctx := context.Background()

	id, _, err := Create(ctx, "192.0.2.53")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	answer := storedAnswer(t, client, id)

	mr.FastForward(config.CaptchaTTL() + time.Second)

	solved, _, err := Verify(ctx, id, answer)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if solved {
		t.Fatal("expired challenge should not verify")
	}
}

func TestVerifyAcceptsNormalizedForms(t *testing.T) {
	_, client := setupChallengeStore(t)
	ctx := context.Background()

	id, _, err := Create(ctx, "192.0.2.54")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	answer := storedAnswer(t, client, id)

	solved, _, err := Verify(ctx, id, " "+answer+" ")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !solved {
		t.Fatal("whitespace around a correct answer should still verify")
	}
}
