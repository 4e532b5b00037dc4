package logtable

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the canonical form of RunMeta start and finish times.
const TimestampLayout = "2006-01-02 15:04:05"

// RunMeta is the global metadata of one parsed log.
type RunMeta struct {
	StartTime  string `json:"start_time"`
	FinishTime string `json:"finish_time"`
	Revision   string `json:"revision"`
	Branch     string `json:"branch"`
	NTables    int    `json:"n_tables"`
	Entries    []int  `json:"entries"`
}

// datePattern is one supported locale rendering of a date line.
type datePattern struct {
	name  string
	re    *regexp.Regexp
	parse func(m []string) (time.Time, error)
}

var germanMonths = strings.NewReplacer(
	"Jan", "Jan", "Feb", "Feb", "Mär", "Mar", "Mrz", "Mar", "Apr", "Apr",
	"Mai", "May", "Jun", "Jun", "Jul", "Jul", "Aug", "Aug", "Sep", "Sep",
	"Okt", "Oct", "Nov", "Nov", "Dez", "Dec",
)

var datePatterns = []datePattern{
	{
		// date(1) in the C locale: "Tue Jan 10 12:00:05 CET 2023".
		name: "en",
		re: regexp.MustCompile(
			`(?:Mon|Tue|Wed|Thu|Fri|Sat|Sun) +` +
				`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) +` +
				`(\d{1,2}) (\d{2}:\d{2}:\d{2}) (?:[A-Z]{2,5} )?(\d{4})`,
		),
		parse: func(m []string) (time.Time, error) {
			return time.Parse("Jan 2 15:04:05 2006",
				fmt.Sprintf("%s %s %s %s", m[1], m[2], m[3], m[4]))
		},
	},
	{
		// date(1) in a German locale: "Di 10. Jan 12:00:05 CET 2023".
		name: "de",
		re: regexp.MustCompile(
			`(?:Mo|Di|Mi|Do|Fr|Sa|So) +(\d{1,2})\. +` +
				`(Jan|Feb|Mär|Mrz|Apr|Mai|Jun|Jul|Aug|Sep|Okt|Nov|Dez)\.? +` +
				`(\d{2}:\d{2}:\d{2}) (?:[A-Z]{2,5} )?(\d{4})`,
		),
		parse: func(m []string) (time.Time, error) {
			return time.Parse("Jan 2 15:04:05 2006",
				fmt.Sprintf("%s %s %s %s", germanMonths.Replace(m[2]), m[1], m[3], m[4]))
		},
	},
	{
		name: "iso",
		re:   regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[T ](\d{2}:\d{2}:\d{2})`),
		parse: func(m []string) (time.Time, error) {
			return time.Parse("2006-01-02 15:04:05", m[1]+" "+m[2])
		},
	},
}

var (
	revisionPattern = regexp.MustCompile(`(?m)^[ \t]*Revision[ \t]*:[ \t]*(\S+)`)
	branchPattern   = regexp.MustCompile(`(?m)^[ \t]*Branch[ \t]*:[ \t]*(\S+)`)
)

// parseRunWindow finds the start and finish time of the run. The first
// pattern that matches at all decides the grammar, and it must yield at
// least two dates. When a log carries more than two dates the first one is
// a leading extra and the second and third are used.
func parseRunWindow(text string) (start, finish string, err error) {
	for _, p := range datePatterns {
		matches := p.re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}

		if len(matches) < 2 {
			return "", "", &FormatError{Msg: fmt.Sprintf(
				"only one %s date line found %q, need start and finish", p.name, matches[0][0],
			)}
		}

		pair := matches[:2]
		if len(matches) > 2 {
			pair = matches[1:3]
		}

		s, err := p.parse(pair[0])
		if err != nil {
			return "", "", fmt.Errorf("parsing %s start date %q: %w", p.name, pair[0][0], err)
		}

		f, err := p.parse(pair[1])
		if err != nil {
			return "", "", fmt.Errorf("parsing %s finish date %q: %w", p.name, pair[1][0], err)
		}

		return s.Format(TimestampLayout), f.Format(TimestampLayout), nil
	}

	return "", "", &FormatError{Msg: "no start/finish date line found"}
}

func parseKeyValue(text string, re *regexp.Regexp, key string) (string, error) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", &FormatError{Msg: fmt.Sprintf("missing %q line", key+" :")}
	}

	return m[1], nil
}

func parseRunMeta(text string) (*RunMeta, error) {
	start, finish, err := parseRunWindow(text)
	if err != nil {
		return nil, err
	}

	revision, err := parseKeyValue(text, revisionPattern, "Revision")
	if err != nil {
		return nil, err
	}

	branch, err := parseKeyValue(text, branchPattern, "Branch")
	if err != nil {
		return nil, err
	}

	return &RunMeta{
		StartTime:  start,
		FinishTime: finish,
		Revision:   revision,
		Branch:     branch,
	}, nil
}
