package models

// DayLayout is the calendar day key format used for quota records.
const DayLayout = "2006-01-02"

// UserQuota tracks how many requests a user has completed on Date (UTC).
type UserQuota struct {
	UserID string
	Count  int
	Date   string
}

// QuotaUsage is the read model returned by the quota endpoint.
type QuotaUsage struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}
