package bible

import "strings"

// Book maps a canonical Portuguese abbreviation to display names. The
// English name is what the last-resort provider expects in its URL.
type Book struct {
	Abbrev  string `json:"abbrev"`
	Name    string `json:"name"`
	English string `json:"-"`
}

var books = []Book{
	{"gn", "Gênesis", "Genesis"},
	{"ex", "Êxodo", "Exodus"},
	{"lv", "Levítico", "Leviticus"},
	{"nm", "Números", "Numbers"},
	{"dt", "Deuteronômio", "Deuteronomy"},
	{"js", "Josué", "Joshua"},
	{"jz", "Juízes", "Judges"},
	{"rt", "Rute", "Ruth"},
	{"1sm", "1 Samuel", "1 Samuel"},
	{"2sm", "2 Samuel", "2 Samuel"},
	{"1rs", "1 Reis", "1 Kings"},
	{"2rs", "2 Reis", "2 Kings"},
	{"1cr", "1 Crônicas", "1 Chronicles"},
	{"2cr", "2 Crônicas", "2 Chronicles"},
	{"ed", "Esdras", "Ezra"},
	{"ne", "Neemias", "Nehemiah"},
	{"et", "Ester", "Esther"},
	{"jó", "Jó", "Job"},
	{"sl", "Salmos", "Psalms"},
	{"pv", "Provérbios", "Proverbs"},
	{"ec", "Eclesiastes", "Ecclesiastes"},
	{"ct", "Cânticos", "Song of Solomon"},
	{"is", "Isaías", "Isaiah"},
	{"jr", "Jeremias", "Jeremiah"},
	{"lm", "Lamentações", "Lamentations"},
	{"ez", "Ezequiel", "Ezekiel"},
	{"dn", "Daniel", "Daniel"},
	{"os", "Oséias", "Hosea"},
	{"jl", "Joel", "Joel"},
	{"am", "Amós", "Amos"},
	{"ob", "Obadias", "Obadiah"},
	{"jn", "Jonas", "Jonah"},
	{"mq", "Miquéias", "Micah"},
	{"na", "Naum", "Nahum"},
	{"hc", "Habacuque", "Habakkuk"},
	{"sf", "Sofonias", "Zephaniah"},
	{"ag", "Ageu", "Haggai"},
	{"zc", "Zacarias", "Zechariah"},
	{"ml", "Malaquias", "Malachi"},
	{"mt", "Mateus", "Matthew"},
	{"mc", "Marcos", "Mark"},
	{"lc", "Lucas", "Luke"},
	{"jo", "João", "John"},
	{"at", "Atos", "Acts"},
	{"rm", "Romanos", "Romans"},
	{"1co", "1 Coríntios", "1 Corinthians"},
	{"2co", "2 Coríntios", "2 Corinthians"},
	{"gl", "Gálatas", "Galatians"},
	{"ef", "Efésios", "Ephesians"},
	{"fp", "Filipenses", "Philippians"},
	{"cl", "Colossenses", "Colossians"},
	{"1ts", "1 Tessalonicenses", "1 Thessalonians"},
	{"2ts", "2 Tessalonicenses", "2 Thessalonians"},
	{"1tm", "1 Timóteo", "1 Timothy"},
	{"2tm", "2 Timóteo", "2 Timothy"},
	{"tt", "Tito", "Titus"},
	{"fm", "Filemom", "Philemon"},
	{"hb", "Hebreus", "Hebrews"},
	{"tg", "Tiago", "James"},
	{"1pe", "1 Pedro", "1 Peter"},
	{"2pe", "2 Pedro", "2 Peter"},
	{"1jo", "1 João", "1 John"},
	{"2jo", "2 João", "2 John"},
	{"3jo", "3 João", "3 John"},
	{"jd", "Judas", "Jude"},
	{"ap", "Apocalipse", "Revelation"},
}

var versions = []Version{
	{"nvi", "Nova Versão Internacional"},
	{"ra", "Almeida Revista e Atualizada"},
	{"acf", "Almeida Corrigida Fiel"},
}

const DefaultVersion = "nvi"

func Books() []Book { return books }

func Versions() []Version { return versions }

// LookupBook resolves a user-typed book name or abbreviation to a Book.
// Exact match wins; otherwise the longest name prefix match is used, so
// "Gên" and "genesis" both resolve to Gênesis.
func LookupBook(name string) (Book, bool) {
	needle := normalizeBookName(name)
	if needle == "" {
		return Book{}, false
	}

	// Abbreviations match verbatim so "jo" (João) never collides with the
	// accent-stripped "jó" (Jó).
	raw := strings.ToLower(strings.TrimSpace(name))
	for _, b := range books {
		if raw == b.Abbrev {
			return b, true
		}
	}
	for _, b := range books {
		if needle == normalizeBookName(b.Name) || needle == normalizeBookName(b.English) {
			return b, true
		}
	}

	var best Book
	bestLen := 0
	for _, b := range books {
		for _, candidate := range []string{normalizeBookName(b.Name), normalizeBookName(b.English)} {
			if strings.HasPrefix(candidate, needle) && len(candidate) > bestLen {
				best, bestLen = b, len(candidate)
			}
		}
	}
	if bestLen == 0 {
		return Book{}, false
	}
	return best, true
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "â", "a", "ã", "a", "à", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func normalizeBookName(name string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}
