package core

// CategoryTotal is the sum of amounts for one category over a time window.
type CategoryTotal struct {
	Category Category
	Total    Money
}

// DailyTotal is the sum of amounts for one calendar day.
type DailyTotal struct {
	Day   Date
	Total Money
}
