package directory

type User struct {
	UID         string
	DN          string
	DisplayName string
	Mail        string
}

// Grant is what one group entry allows on one calendar.
type Grant struct {
	CalendarID string
	Read       bool
	Write      bool
}
