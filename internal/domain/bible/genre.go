package bible

import "strings"

// Genre groups books by literary style, used for default voice selection.
type Genre string

const (
	GenreLaw         Genre = "law"
	GenreHistory     Genre = "history"
	GenrePoetry      Genre = "poetry"
	GenreWisdom      Genre = "wisdom"
	GenreProphecy    Genre = "prophecy"
	GenreGospel      Genre = "gospel"
	GenreEpistle     Genre = "epistle"
	GenreApocalyptic Genre = "apocalyptic"
)

var bookGenres = map[string]Genre{
	"genesis": GenreLaw, "exodus": GenreLaw, "leviticus": GenreLaw,
	"numbers": GenreLaw, "deuteronomy": GenreLaw,

	"joshua": GenreHistory, "judges": GenreHistory, "ruth": GenreHistory,
	"1 samuel": GenreHistory, "2 samuel": GenreHistory,
	"1 kings": GenreHistory, "2 kings": GenreHistory,
	"1 chronicles": GenreHistory, "2 chronicles": GenreHistory,
	"ezra": GenreHistory, "nehemiah": GenreHistory, "esther": GenreHistory,
	"acts": GenreHistory,

	"psalms": GenrePoetry, "song of solomon": GenrePoetry, "lamentations": GenrePoetry,

	"job": GenreWisdom, "proverbs": GenreWisdom, "ecclesiastes": GenreWisdom,

	"isaiah": GenreProphecy, "jeremiah": GenreProphecy, "ezekiel": GenreProphecy,
	"daniel": GenreProphecy, "hosea": GenreProphecy, "joel": GenreProphecy,
	"amos": GenreProphecy, "obadiah": GenreProphecy, "jonah": GenreProphecy,
	"micah": GenreProphecy, "nahum": GenreProphecy, "habakkuk": GenreProphecy,
	"zephaniah": GenreProphecy, "haggai": GenreProphecy, "zechariah": GenreProphecy,
	"malachi": GenreProphecy,

	"matthew": GenreGospel, "mark": GenreGospel, "luke": GenreGospel, "john": GenreGospel,

	"romans": GenreEpistle, "1 corinthians": GenreEpistle, "2 corinthians": GenreEpistle,
	"galatians": GenreEpistle, "ephesians": GenreEpistle, "philippians": GenreEpistle,
	"colossians": GenreEpistle, "1 thessalonians": GenreEpistle, "2 thessalonians": GenreEpistle,
	"1 timothy": GenreEpistle, "2 timothy": GenreEpistle, "titus": GenreEpistle,
	"philemon": GenreEpistle, "hebrews": GenreEpistle, "james": GenreEpistle,
	"1 peter": GenreEpistle, "2 peter": GenreEpistle,
	"1 john": GenreEpistle, "2 john": GenreEpistle, "3 john": GenreEpistle,
	"jude": GenreEpistle,

	"revelation": GenreApocalyptic,
}

// GenreOf classifies a book name; unknown books read as history, the
// most neutral narration style.
func GenreOf(book string) Genre {
	if g, ok := bookGenres[normalizeBook(book)]; ok {
		return g
	}
	return GenreHistory
}

func normalizeBook(book string) string {
	return strings.ToLower(strings.TrimSpace(book))
}
