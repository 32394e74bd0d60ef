package analysis

import (
	"github.com/lysyi3m/news-comb/app/textutil"
)

const (
	LanguagePT = "pt"
	LanguageEN = "en"
)

type lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var fallbackLexicons = map[string]lexicon{
	LanguagePT: newLexicon(
		[]string{"bom", "ótimo", "excelente", "fantástico", "maravilhoso", "incrível", "positivo", "sucesso", "crescimento", "lucro", "ganho", "vitória"},
		[]string{"ruim", "terrível", "horrível", "péssimo", "negativo", "fracasso", "perda", "queda", "crise", "problema", "erro", "falha"},
	),
	LanguageEN: newLexicon(
		[]string{"good", "great", "excellent", "fantastic", "wonderful", "amazing", "positive", "success", "growth", "profit", "gain", "victory"},
		[]string{"bad", "terrible", "horrible", "awful", "negative", "failure", "loss", "fall", "crisis", "problem", "error", "fault"},
	),
}

// entries are stored accent-folded so lookups match "otimo" and "ótimo" alike
func newLexicon(positive, negative []string) lexicon {
	return lexicon{positive: foldSet(positive), negative: foldSet(negative)}
}

func foldSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[textutil.Normalize(w)] = struct{}{}
	}
	return set
}

// SupportedLanguage reports whether a fallback lexicon and stop list exist for language.
func SupportedLanguage(language string) bool {
	_, ok := fallbackLexicons[language]
	return ok
}

func lexiconFor(language string) lexicon {
	if lex, ok := fallbackLexicons[language]; ok {
		return lex
	}
	return fallbackLexicons[LanguagePT]
}

var stopWords = map[string]map[string]struct{}{
	LanguagePT: foldSet([]string{
		"a", "ao", "aos", "as", "até", "com", "como", "da", "das", "de", "dela", "dele", "deles", "do", "dos",
		"e", "ela", "elas", "ele", "eles", "em", "entre", "era", "essa", "esse", "esta", "está", "este",
		"eu", "foi", "for", "foram", "há", "isso", "isto", "já", "lhe", "mais", "mas", "me", "mesmo", "muito",
		"na", "nas", "não", "nem", "no", "nos", "num", "numa", "o", "os", "ou", "para", "pela", "pelas",
		"pelo", "pelos", "por", "qual", "quando", "que", "quem", "se", "sem", "ser", "seu", "seus", "só",
		"sua", "suas", "também", "te", "tem", "têm", "um", "uma", "umas", "uns", "você", "foi", "são", "sobre",
	}),
	LanguageEN: foldSet([]string{
		"a", "about", "after", "all", "also", "an", "and", "any", "are", "as", "at", "be", "been", "but", "by",
		"can", "could", "did", "do", "does", "for", "from", "had", "has", "have", "he", "her", "his", "how",
		"i", "if", "in", "into", "is", "it", "its", "more", "most", "no", "not", "of", "on", "or", "our",
		"she", "so", "some", "than", "that", "the", "their", "them", "then", "there", "these", "they", "this",
		"to", "up", "was", "we", "were", "what", "when", "which", "who", "will", "with", "would", "you",
	}),
}

func stopWordsFor(language string) map[string]struct{} {
	if set, ok := stopWords[language]; ok {
		return set
	}
	return stopWords[LanguagePT]
}

// negations flip the polarity of the opinion word that follows
var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "none": {}, "nobody": {}, "nothing": {}, "without": {},
	"isnt": {}, "dont": {}, "doesnt": {}, "didnt": {}, "wasnt": {}, "cant": {}, "wont": {},
	"nao": {}, "nunca": {}, "nem": {}, "jamais": {}, "nenhum": {}, "nenhuma": {}, "sem": {},
}

// polarity and subjectivity of opinion words, in the style of a pattern
// adjective lexicon
type opinion struct {
	polarity     float64
	subjectivity float64
}

var opinionLexicon = map[string]opinion{
	"good": {0.7, 0.6}, "great": {0.8, 0.75}, "excellent": {1.0, 1.0}, "amazing": {0.6, 0.9},
	"wonderful": {1.0, 1.0}, "happy": {0.8, 1.0}, "best": {1.0, 0.3}, "nice": {0.6, 1.0},
	"strong": {0.43, 0.73}, "positive": {0.23, 0.55}, "bad": {-0.7, 0.67}, "terrible": {-1.0, 1.0},
	"horrible": {-1.0, 1.0}, "awful": {-1.0, 1.0}, "worst": {-1.0, 1.0}, "sad": {-0.5, 1.0},
	"weak": {-0.38, 0.63}, "negative": {-0.3, 0.4}, "wrong": {-0.5, 0.9}, "poor": {-0.4, 0.6},
	"bom": {0.7, 0.6}, "boa": {0.7, 0.6}, "otimo": {0.8, 0.75}, "otima": {0.8, 0.75},
	"excelente": {1.0, 1.0}, "incrivel": {0.6, 0.9}, "maravilhoso": {1.0, 1.0}, "feliz": {0.8, 1.0},
	"melhor": {1.0, 0.3}, "forte": {0.43, 0.73}, "positivo": {0.23, 0.55}, "ruim": {-0.7, 0.67},
	"terrivel": {-1.0, 1.0}, "horrivel": {-1.0, 1.0}, "pessimo": {-1.0, 1.0}, "pior": {-1.0, 1.0},
	"triste": {-0.5, 1.0}, "fraco": {-0.38, 0.63}, "negativo": {-0.3, 0.4}, "errado": {-0.5, 0.9},
}

var intensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "really": 1.2, "so": 1.3, "too": 1.3,
	"muito": 1.3, "extremamente": 1.5, "bastante": 1.2, "tao": 1.3, "super": 1.4,
}
