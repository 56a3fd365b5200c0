package revocation

import (
	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/cache"
	"github.com/agentid-dev/agentid-go/pkg/verifier"
)

// NewAwareVerifier builds a verifier and a watcher sharing one cache, so
// a revocation event invalidates the verifier's cached verdict
// immediately. The watcher is returned unconnected; call Connect to start
// it.
func NewAwareVerifier(apiBase string, c *cache.Cache, onRevocation func(agentid.RevocationEvent)) (*verifier.Verifier, *Watcher) {
	if c == nil {
		c = cache.Default()
	}

	v := verifier.New(verifier.Options{
		APIBase: apiBase,
		Cache:   c,
	})
	w := NewWatcher(Options{
		APIBase:      apiBase,
		Cache:        c,
		OnRevocation: onRevocation,
	})
	return v, w
}
