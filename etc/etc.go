package etc

import (
	"time"

	"github.com/nrednav/cuid2"
)

func NewFreshID() string {
	return cuid2.Generate()
}

// Clock lets tests control time. The zero value uses the wall clock.
type Clock struct {
	NowFunc func() time.Time
}

func (c Clock) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now()
}
