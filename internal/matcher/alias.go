package matcher

// aliasTable is a bounded set of venue-specific abbreviations the Matcher
// expands during normalization, one whole word at a time, so "lal" and
// "lakers" collapse to one canonical token. Kept intentionally small: this is a
// normalization aid, not a full sports ontology.
var aliasTable = map[string]string{
	// teams
	"lal":  "lakers",
	"bos":  "celtics",
	"gsw":  "warriors",
	"nyk":  "knicks",
	"mia":  "heat",
	"mufc": "man utd",
	"mci":  "man city",
	"rma":  "real madrid",
	"fcb":  "barcelona",

	// leagues / orgs
	"nba":  "nba",
	"nfl":  "nfl",
	"mlb":  "mlb",
	"epl":  "premier league",
	"ucl":  "champions league",
	"fed":  "federal reserve",
	"fomc": "federal reserve",

	// crypto tickers
	"btc": "bitcoin",
	"eth": "ethereum",
	"sol": "solana",

	// months
	"jan": "january", "feb": "february", "mar": "march", "apr": "april",
	"jun": "june", "jul": "july", "aug": "august", "sep": "september",
	"sept": "september", "oct": "october", "nov": "november", "dec": "december",
}

// directionAlias maps every direction spelling the Matcher recognizes onto
// a canonical direction word. Ordered (longest phrase first) and walked in
// order rather than via map iteration, so a title matching more than one
// phrase resolves the same way on every call.
var directionAlias = []struct{ phrase, canonical string }{
	{"higher than", "above"}, {"more than", "above"}, {"above", "above"}, {"over", "above"},
	{"lower than", "below"}, {"less than", "below"}, {"below", "below"}, {"under", "below"},
	{"beats", "wins"}, {"wins", "wins"}, {"win", "wins"},
	{"loses", "loses"}, {"lose", "loses"}, {"loss", "loses"},
}

// directionFamily groups opposite directions into the same family so that,
// e.g., "above" and "below" markets on the same metric/threshold still
// produce the same event key; the Matcher's flip flag records that they
// are opposite sides, not that they are unrelated.
var directionFamily = map[string]string{
	"above": "threshold",
	"below": "threshold",
	"wins":  "result",
	"loses": "result",
}

// metricKeywords maps a recognized keyword to its metric category. Ordered
// (most specific first) and walked in order rather than via map iteration,
// so a title matching more than one keyword resolves the same way on
// every call.
var metricKeywords = []struct{ keyword, category string }{
	{"trading at", "price"}, {"price", "price"}, {"close", "price"},
	{"temperature", "temp"}, {"temp", "temp"},
	{"points", "score"}, {"score", "score"},
	{"inflation", "rate"}, {"approval", "rate"}, {"rate", "rate"},
}
