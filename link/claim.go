package link

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	claimsMu sync.Mutex
	claims   = make(map[ByteLink]struct{})
)

// Claim marks l as owned by one session until release is called.
// A second claim on the same link fails with ErrLinkBusy.
//
// Links are told apart by identity, so l must be of a comparable type; every
// driver here returns a pointer. A link of another type is refused.
func Claim(l ByteLink) (release func(), err error) {
	if l == nil {
		return nil, ErrNotReady
	}
	if t := reflect.TypeOf(l); !t.Comparable() {
		return nil, fmt.Errorf("link: cannot claim a %s: type is not comparable", t)
	}

	claimsMu.Lock()
	defer claimsMu.Unlock()

	if _, busy := claims[l]; busy {
		return nil, ErrLinkBusy
	}
	claims[l] = struct{}{}

	var once sync.Once
	release = func() {
		once.Do(func() {
			claimsMu.Lock()
			delete(claims, l)
			claimsMu.Unlock()
		})
	}
	return release, nil
}
