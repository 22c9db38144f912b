package task

import (
	"fmt"
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
)

// CancellationToken is an atomic boolean a launcher owns and a task body
// polls cooperatively. Cancel does not interrupt execution; the task must
// check IsCanceled and return early itself.
type CancellationToken struct {
	canceled atomix.Bool
}

// NewCancellationToken constructs an uncanceled token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Cancel requests cancellation.
func (c *CancellationToken) Cancel() { c.canceled.Store(true) }

// IsCanceled reports whether Cancel has been called.
func (c *CancellationToken) IsCanceled() bool { return c.canceled.Load() }

// Reset clears the cancellation state, allowing the token to be reused for
// a new task.
func (c *CancellationToken) Reset() { c.canceled.Store(false) }

// currentTokens maps a goroutine ID to the CancellationToken its innermost
// active CancellationTokenScope installed. Go has no thread_local, so this
// substitutes for the source's TLS slot: a goroutine is the closest
// equivalent of "the current thread" in this runtime.
var currentTokens sync.Map // goroutineID -> *CancellationToken

// CancellationTokenScope makes token observable, for the lifetime of the
// scope, to any code running on the same goroutine via
// CurrentCancellationToken — so deeply nested task code can check for
// cancellation without the token being threaded explicitly through every
// call.
type CancellationTokenScope struct {
	gid    uint64
	active bool
}

// EnterCancellationTokenScope installs token as the current goroutine's
// active cancellation token. Nesting scopes for a different token on the
// same goroutine is a programmer error, matching the source's assertion.
func EnterCancellationTokenScope(token *CancellationToken) *CancellationTokenScope {
	scope := &CancellationTokenScope{gid: goroutineID()}
	if token == nil {
		return scope
	}
	if existing, ok := currentTokens.Load(scope.gid); ok && existing != token {
		panic(fmt.Sprintf("task: nested cancellation token scopes with different tokens on goroutine %d", scope.gid))
	}
	currentTokens.Store(scope.gid, token)
	scope.active = true
	return scope
}

// Exit ends the scope, clearing the goroutine's current token if this scope
// was the one that installed it.
func (s *CancellationTokenScope) Exit() {
	if s.active {
		currentTokens.Delete(s.gid)
	}
}

// CurrentCancellationToken returns the calling goroutine's active token, or
// nil if none is set.
func CurrentCancellationToken() *CancellationToken {
	if v, ok := currentTokens.Load(goroutineID()); ok {
		return v.(*CancellationToken)
	}
	return nil
}

// IsCurrentWorkCanceled is a convenience wrapper: true iff there is a
// current token and it has been canceled.
func IsCurrentWorkCanceled() bool {
	if tok := CurrentCancellationToken(); tok != nil {
		return tok.IsCanceled()
	}
	return false
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
