package realtime

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

const pushAlphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// KeyGenerator makes 20 character keys that sort by creation time.
// The first 8 characters encode the millisecond timestamp, the other 12
// are random and get incremented when two keys share a millisecond.
type KeyGenerator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastTime int64
	lastRand [12]byte
}

func NewKeyGenerator(now func() time.Time) *KeyGenerator {
	if now == nil {
		now = time.Now
	}
	return &KeyGenerator{now: now}
}

func (v *KeyGenerator) Next() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ts := v.now().UnixMilli()
	if ts == v.lastTime {
		i := len(v.lastRand) - 1
		for ; i >= 0 && v.lastRand[i] == 63; i-- {
			v.lastRand[i] = 0
		}
		if i < 0 {
			return "", fmt.Errorf("key space exhausted for %d", ts)
		}
		v.lastRand[i]++
	} else {
		var buf [12]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("unable to read random bytes: %v", err)
		}
		for i := range buf {
			v.lastRand[i] = buf[i] % 64
		}
		v.lastTime = ts
	}

	var out [20]byte
	for i := 7; i >= 0; i-- {
		out[i] = pushAlphabet[ts%64]
		ts /= 64
	}
	for i, c := range v.lastRand {
		out[8+i] = pushAlphabet[c]
	}
	return string(out[:]), nil
}
