package pagefeed

import (
	"time"

	"github.com/pevans/pagefeed/config"
	"github.com/pevans/pagefeed/sources"
)

// IsDue reports whether res should be fetched at now. A page that was never
// checked is always due. Otherwise it becomes due once both its interval has
// passed since the last check and its cooldown has passed since the last
// observed change.
func IsDue(res config.Resource, st sources.State, now time.Time) bool {
	// Never fetched -- fetch immediately
	if st.NeverChecked() {
		return true
	}

	next := st.LastChecked.Add(res.Interval)
	if quiet := st.LastModified.Add(res.Cooldown); quiet.After(next) {
		next = quiet
	}

	return now.After(next)
}
