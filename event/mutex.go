package event

import (
	"runtime"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/enginecore/parkinglot"
	"code.hybscloud.com/spin"
)

// spinLimit is the number of bounded CAS attempts before RecursiveMutex
// falls back to a parking-lot wait, matching the platform tuning the source
// cites for its Windows spin-then-park critical section (4000 iterations).
const spinLimit = 4000

// RecursiveMutex is a mutex that may be locked again by the same goroutine
// that already holds it, spin-trying first and falling back to a
// parking-lot wait under sustained contention.
type RecursiveMutex struct {
	owner atomix.Uint64 // goroutine ID of the current holder, 0 if unlocked
	count atomix.Int64  // re-entrancy depth
}

func (m *RecursiveMutex) addr() uintptr { return parkinglot.AddressOf(unsafe.Pointer(&m.owner)) }

// Lock acquires the mutex, blocking if another goroutine holds it. Calling
// Lock again from the same goroutine that already holds it just bumps the
// re-entrancy count.
func (m *RecursiveMutex) Lock() {
	self := goroutineID()

	if m.owner.LoadAcquire() == self {
		m.count.AddAcqRel(1)
		return
	}

	var w spin.Wait
	for i := 0; i < spinLimit; i++ {
		if m.owner.CompareAndSwapAcqRel(0, self) {
			m.count.StoreRelaxed(1)
			return
		}
		w.Once()
	}

	for !m.tryClaim(self) {
		parkinglot.Wait(m.addr(), func() bool { return m.owner.LoadAcquire() != 0 }, nil)
	}
	m.count.StoreRelaxed(1)
}

func (m *RecursiveMutex) tryClaim(self uint64) bool {
	return m.owner.CompareAndSwapAcqRel(0, self)
}

// Unlock releases one level of the re-entrancy count, waking one waiter once
// the count reaches zero. Unlock on a mutex the caller does not hold is a
// programmer error, same as sync.Mutex.
func (m *RecursiveMutex) Unlock() {
	if m.count.AddAcqRel(-1) == 0 {
		m.owner.StoreRelease(0)
		parkinglot.WakeOne(m.addr(), nil)
	}
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
