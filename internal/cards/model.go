package cards

// CardData is a localized card row: the translation in the requested
// language, or in the default language when no such translation exists.
type CardData struct {
	Key         string `json:"key"`
	Lang        string `json:"lang"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DailyCard is the response body of the daily draw.
type DailyCard struct {
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	Key         string `json:"key"`
	Description string `json:"description"`
}
