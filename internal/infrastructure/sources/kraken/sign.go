package kraken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"math/rand"
	"net/url"
	"sync"
	"time"
)

// nonceSource produces the strictly increasing nonces Kraken's private API
// requires. The next nonce is max(now in microseconds, last+1000) plus a
// random 0..999 jitter, which tolerates both clock skew and rapid concurrent
// calls: the +1000 floor guarantees strict growth even when the wall clock
// stands still or steps backwards.
type nonceSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newNonceSource() *nonceSource {
	return &nonceSource{now: time.Now}
}

// Next returns the next nonce. Safe for concurrent use.
func (n *nonceSource) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	nonce := n.now().UnixMicro()
	if floor := n.last + 1000; nonce < floor {
		nonce = floor
	}
	nonce += rand.Int63n(1000)
	n.last = nonce
	return nonce
}

// sign computes the API-Sign header for a private call:
// base64(HMAC-SHA512(secret, path + SHA256(nonce + form-encoded body))).
// secret is the base64-decoded API secret.
func sign(secret []byte, path, nonce string, form url.Values) string {
	shaSum := sha256.Sum256([]byte(nonce + form.Encode()))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(shaSum[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
