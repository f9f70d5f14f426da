package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/boj/redistore"
	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/sessions"

	"github.com/redmonkez12/locklog/internal/config"
)

// NewRedisStore returns a session store persisted in Redis under "session:"
// keys, so sessions survive restarts and are shared between instances.
func NewRedisStore(rc config.RedisConfig, sc config.SessionConfig, secure bool) (*redistore.RediStore, error) {
	pool := &redis.Pool{
		MaxIdle:     10,
		MaxActive:   0, // unlimited
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			var options []redis.DialOption
			if rc.Password != "" {
				options = append(options, redis.DialPassword(rc.Password))
			}
			options = append(options, redis.DialDatabase(rc.DB))
			return redis.Dial("tcp", rc.Address(), options...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	store, err := redistore.NewRediStoreWithPool(pool, sc.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis session store: %w", err)
	}

	store.SetKeyPrefix("session:")
	store.Options = newOptions(sc, secure)

	return store, nil
}

// NewCookieStore keeps the whole session in a signed cookie. Used when no
// Redis is wanted, mostly in tests.
func NewCookieStore(sc config.SessionConfig, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(sc.Secret)
	store.Options = newOptions(sc, secure)
	return store
}

func newOptions(sc config.SessionConfig, secure bool) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(sc.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
