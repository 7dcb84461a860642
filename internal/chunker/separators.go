package chunker

import (
	"path/filepath"
	"strings"
)

// MarkdownSeparators are regular expressions, tried in order.
var MarkdownSeparators = []string{
	`\n#{1,6} `,
	"```\n",
	`\n\*\*\*+\n`,
	`\n---+\n`,
	`\n___+\n`,
	`\n\n`,
	`\n`,
	` `,
	``,
}

// cLikeSeparators is the fallback for code in languages without a table.
var cLikeSeparators = []string{
	"\nclass ", "\nvoid ", "\nint ", "\nfloat ", "\ndouble ",
	"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
	"\n\n", "\n", " ", "",
}

var languageSeparators = map[string][]string{
	"go": {
		"\nfunc ", "\nvar ", "\nconst ", "\ntype ",
		"\nif ", "\nfor ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	"python": {
		"\nclass ", "\ndef ", "\n\tdef ", "\n    def ",
		"\n\n", "\n", " ", "",
	},
	"javascript": {
		"\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nclass ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault ",
		"\n\n", "\n", " ", "",
	},
	"typescript": {
		"\nenum ", "\ninterface ", "\nnamespace ", "\ntype ",
		"\nclass ", "\nfunction ", "\nconst ", "\nlet ", "\nvar ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault ",
		"\n\n", "\n", " ", "",
	},
	"java": {
		"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	"kotlin": {
		"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\ninternal ",
		"\ncompanion ", "\nfun ", "\nval ", "\nvar ",
		"\nif ", "\nfor ", "\nwhile ", "\nwhen ", "\ncase ", "\nelse ",
		"\n\n", "\n", " ", "",
	},
	"rust": {
		"\nfn ", "\nconst ", "\nlet ", "\nif ", "\nwhile ", "\nfor ",
		"\nloop ", "\nmatch ", "\nconst ",
		"\n\n", "\n", " ", "",
	},
	"ruby": {
		"\ndef ", "\nclass ", "\nif ", "\nunless ", "\nwhile ", "\nfor ",
		"\ndo ", "\nbegin ", "\nrescue ",
		"\n\n", "\n", " ", "",
	},
	"php": {
		"\nfunction ", "\nclass ", "\nif ", "\nforeach ", "\nwhile ",
		"\ndo ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	"csharp": {
		"\ninterface ", "\nenum ", "\nimplements ", "\ndelegate ", "\nevent ",
		"\nclass ", "\nabstract ",
		"\npublic ", "\nprotected ", "\nprivate ", "\nstatic ", "\nreturn ",
		"\nif ", "\ncontinue ", "\nfor ", "\nforeach ", "\nwhile ", "\nswitch ",
		"\nbreak ", "\ncase ", "\nelse ",
		"\ntry ", "\nthrow ", "\nfinally ", "\ncatch ",
		"\n\n", "\n", " ", "",
	},
	"scala": {
		"\nclass ", "\nobject ", "\ndef ", "\nval ", "\nvar ",
		"\nif ", "\nfor ", "\nwhile ", "\nmatch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	"swift": {
		"\nfunc ", "\nclass ", "\nstruct ", "\nenum ",
		"\nif ", "\nfor ", "\nwhile ", "\ndo ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	"lua": {
		"\nlocal ", "\nfunction ", "\nif ", "\nfor ", "\nwhile ", "\nrepeat ",
		"\n\n", "\n", " ", "",
	},
	"haskell": {
		"\nmain :: ", "\nmain = ", "\nlet ", "\nin ", "\ndo ", "\nwhere ",
		"\n:: ", "\n= ", "\ndata ", "\nnewtype ", "\ntype ", "\n:: ",
		"\nmodule ", "\nimport ", "\nqualified ", "\nimport qualified ",
		"\nclass ", "\ninstance ", "\ncase ", "\n| ",
		"\n\n", "\n", " ", "",
	},
	"perl": {
		"\nsub ", "\nmy ", "\nif ", "\nforeach ", "\nwhile ",
		"\n\n", "\n", " ", "",
	},
	"html": {
		"<body", "<div", "<p", "<br", "<li", "<h1", "<h2", "<h3", "<h4", "<h5", "<h6",
		"<span", "<table", "<tr", "<td", "<th", "<ul", "<ol", "<header", "<footer",
		"<nav", "<head", "<style", "<script", "<meta", "<title",
		"",
	},
}

var extensionLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".scala": "scala",
	".swift": "swift",
	".lua":   "lua",
	".hs":    "haskell",
	".pl":    "perl",
	".html":  "html",
}

// SeparatorsFor returns the code separators for the language of path,
// falling back to a C-like table.
func SeparatorsFor(path string) []string {
	if seps, ok := languageSeparators[extensionLanguages[strings.ToLower(filepath.Ext(path))]]; ok {
		return seps
	}
	return cLikeSeparators
}

// NewCodeSplitter creates a recursive splitter with the separators for the
// language of path.
func NewCodeSplitter(path string, chunkSize int) *RecursiveSplitter {
	return NewRecursiveSplitter(chunkSize, SeparatorsFor(path), false)
}
