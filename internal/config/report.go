package config

import "fmt"

const (
	DefaultMinScore = 200
	DefaultSort     = "total"
	DefaultFormat   = "terminal"
)

// DefaultPatterns are counted per ticker alongside the score.
var DefaultPatterns = []string{"🚀"}

// DefaultBanned are all-caps words the ticker pattern matches that are not tickers.
var DefaultBanned = []string{
	"THE", "FUCK", "ING", "CEO", "USD", "WSB", "FDA", "NEWS", "FOR", "YOU", "AMTES", "WILL", "CDT", "SUPPO",
	"MERGE", "BUY", "HIGH", "ADS", "FOMO", "THIS", "OTC", "ELI", "IMO", "TLDR", "SHIT", "ETF", "BOOM", "THANK",
	"PPP", "REIT", "HOT", "MAYBE", "AKA", "CBS", "SEC", "NOW", "OVER", "ROPE", "MOON", "SSR", "HOLD", "SELL",
	"COVID", "GROUP", "MONDA", "USA", "YOLO", "MUSK", "AND", "STONK", "ELON", "CAD", "WIN", "GET", "BETS",
	"INTO", "JUST", "MAKE", "NEED", "BIG", "OUT", "TOP", "ALL", "ATH", "ANY", "AIM", "IPO", "EDIT",
}

// Sort columns of the ranked table.
var SortColumns = []string{"total", "recent", "prev", "change", "rockets"}

// Output formats of the ranked table.
var Formats = []string{"terminal", "csv", "json"}

type ReportConfig struct {
	MinScore int      `yaml:"min_score"`
	MaxPrice float64  `yaml:"max_price"` // 0 means unlimited
	Sort     string   `yaml:"sort"`
	Format   string   `yaml:"format"`
	Output   string   `yaml:"output"`
	Patterns []string `yaml:"patterns"`
	Banned   []string `yaml:"banned"`
}

func applyReportDefaults(r *ReportConfig) {
	if r.MinScore == 0 {
		r.MinScore = DefaultMinScore
	}
	if r.Sort == "" {
		r.Sort = DefaultSort
	}
	if r.Format == "" {
		r.Format = DefaultFormat
	}
	if r.Patterns == nil {
		r.Patterns = append([]string(nil), DefaultPatterns...)
	}
	if r.Banned == nil {
		r.Banned = append([]string(nil), DefaultBanned...)
	}
}

func validateReport(r *ReportConfig) error {
	if err := ValidateSort(r.Sort); err != nil {
		return fmt.Errorf("report.sort: %w", err)
	}
	if err := ValidateFormat(r.Format); err != nil {
		return fmt.Errorf("report.format: %w", err)
	}
	if r.MaxPrice < 0 {
		return fmt.Errorf("report.max_price: must not be negative, got %g", r.MaxPrice)
	}
	return nil
}

// ValidateSort checks a sort column name; flags reuse it.
func ValidateSort(s string) error {
	for _, c := range SortColumns {
		if s == c {
			return nil
		}
	}
	return fmt.Errorf("unknown sort column %q (want total, recent, prev, change, or rockets)", s)
}

// ValidateFormat checks an output format name.
func ValidateFormat(s string) error {
	for _, f := range Formats {
		if s == f {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want terminal, csv, or json)", s)
}
