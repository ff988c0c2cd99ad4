package bible

// BookRef identifies a book as returned to clients.
type BookRef struct {
	Name   string `json:"name"`
	Abbrev string `json:"abbrev"`
}

type Verse struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chapter is the canonical lookup result shape, whichever provider served it.
type Chapter struct {
	Book    BookRef `json:"book"`
	Chapter int     `json:"chapter"`
	Verses  []Verse `json:"verses"`
}

type Version struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchVerse is one hit of a free-text or reference search.
type SearchVerse struct {
	Book    BookRef `json:"book"`
	Chapter int     `json:"chapter"`
	Number  int     `json:"number"`
	Text    string  `json:"text"`
}

type SearchResult struct {
	Occurrence int           `json:"occurrence"`
	Verses     []SearchVerse `json:"verses"`
}
