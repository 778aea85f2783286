//go:build integration

package replay_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthlink/internal/apiauth/replay"
	"healthlink/pkg/testutil/containers"
)

type GuardRedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	guard *replay.Guard
}

func TestGuardRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(GuardRedisSuite))
}

func (s *GuardRedisSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.guard = replay.New(s.redis.Client)
}

func (s *GuardRedisSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// Exactly one of many concurrent presentations of the same signature wins.
func (s *GuardRedisSuite) TestConcurrentReplayAdmitsOnce() {
	const goroutines = 32
	var wg sync.WaitGroup
	var fresh atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.guard.Seen(context.Background(), "same-signature", time.Minute) {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), fresh.Load())
	s.False(s.guard.Degraded())
}

func (s *GuardRedisSuite) TestKeyExpires() {
	ctx := context.Background()
	s.False(s.guard.Seen(ctx, "short-lived", 200*time.Millisecond))
	s.Eventually(func() bool {
		return !s.guard.Seen(ctx, "short-lived", 200*time.Millisecond)
	}, 3*time.Second, 100*time.Millisecond)
}
