package logtable

import (
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"
)

// durationPatterns are tried in order; the first match wins.
var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)h(\d+)m(\d+(?:\.\d*)?)s$`),
	regexp.MustCompile(`^()(\d+)m(\d+(?:\.\d*)?)s$`),
	regexp.MustCompile(`^()()(\d+(?:\.\d*)?)s$`),
}

// numberPattern matches a bare decimal number, optionally signed and with
// an exponent. strconv alone would also accept "NaN", "Inf" and hex.
var numberPattern = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?$`)

// ParseSeconds converts a duration token such as "1h2m3s", "2m3s", "3s"
// or a bare number into seconds. It reports false if the token matches
// none of the supported forms.
func ParseSeconds(tok string) (float64, bool) {
	for _, re := range durationPatterns {
		m := re.FindStringSubmatch(tok)
		if m == nil {
			continue
		}

		h := atof(m[1])
		mins := atof(m[2])
		s := atof(m[3])

		return h*3600 + mins*60 + s, true
	}

	if !numberPattern.MatchString(tok) {
		return 0, false
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// ParseDuration is ParseSeconds with the soft-failure policy applied:
// an unparseable token is logged and yields 0.
func ParseDuration(log logrus.FieldLogger, tok string) float64 {
	v, ok := ParseSeconds(tok)
	if !ok {
		if log != nil {
			log.WithField("token", tok).Warn("Unparseable duration, using 0")
		}

		return 0
	}

	return v
}

func atof(s string) float64 {
	if s == "" {
		return 0
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return v
}
