package rowan

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dTable/lib/db"
	dbtesting "github.com/ValentinKolb/dTable/lib/db/testing"
)

// TestRowanInterface validates the rowan engine against the standardized
// TableDB test suite, once with default options and once with a
// configuration that forces frequent transaction restarts.
func TestRowanInterface(t *testing.T) {
	dbtesting.RunTableDBTests(t, "rowan(default)", func() db.TableDB {
		return NewRowanDB(nil)
	})

	dbtesting.RunTableDBTests(t, "rowan(small)", func() db.TableDB {
		return NewRowanDB(&DBOptions{
			BTreeDegree:  2,
			MaxRetries:   256,
			RetryBackoff: 50 * time.Microsecond,
		})
	})
}
