package model

import "time"

// Free-quota windows. The product historically counted the free allowance per
// day in one code path and per ISO week in another; the active window is
// configuration (see config.FreeQuotaWindow).
const (
	QuotaWindowDay  = "day"
	QuotaWindowWeek = "week"
)

// DailyUsage is the per-(user, calendar day) free-tier usage counter.
type DailyUsage struct {
	UserID    string    `db:"user_id" json:"user_id"`
	UsageDate time.Time `db:"usage_date" json:"usage_date"`
	Count     int       `db:"count" json:"count"`
}
