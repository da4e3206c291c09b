// Package ratelimit содержит token bucket с пополнением раз в секунду
package ratelimit

import "time"

// RefillInterval минимальный интервал между пополнениями
const RefillInterval = time.Second

// TokenBucket ёмкостью rate токенов. Стартует полным; пополняется только если с
// прошлого пополнения прошла хотя бы секунда, на floor(elapsed*rate) токенов.
// Не потокобезопасен: принадлежит одной горутине генерации.
type TokenBucket struct {
	rate       int
	tokens     int
	lastRefill time.Time
	now        func() time.Time
}

func NewTokenBucket(rate int) *TokenBucket {
	return NewTokenBucketWithClock(rate, time.Now)
}

// NewTokenBucketWithClock для тестов с подменой часов
func NewTokenBucketWithClock(rate int, now func() time.Time) *TokenBucket {
	if rate < 1 {
		rate = 1
	}
	return &TokenBucket{
		rate:       rate,
		tokens:     rate,
		lastRefill: now(),
		now:        now,
	}
}

// Refill пополняет бакет, если пора; возвращает текущее число токенов
func (b *TokenBucket) Refill() int {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed >= RefillInterval {
		add := int(elapsed.Seconds() * float64(b.rate))
		b.tokens = min(b.rate, b.tokens+add)
		b.lastRefill = now
	}
	return b.tokens
}

// Available число токенов без пополнения
func (b *TokenBucket) Available() int {
	return b.tokens
}

// Take забирает токен; false если бакет пуст
func (b *TokenBucket) Take() bool {
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (b *TokenBucket) Rate() int {
	return b.rate
}
