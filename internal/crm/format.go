package crm

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/hyperengineering/revline/internal/types"
)

// currencySymbols maps common ISO currency codes to display symbols.
// Codes without a symbol render as "CODE amount".
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"CAD": "C$",
	"INR": "₹",
	"BRL": "R$",
}

var displayPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatValue renders a deal value for display with grouped digits and zero
// decimal places, e.g. FormatValue(1500, "USD") == "$1,500". A zero amount
// and an empty currency fall back to 0 and "USD".
func FormatValue(amount float64, currency string) string {
	code := strings.ToUpper(trimmed(currency))
	if code == "" {
		code = "USD"
	}

	formatted := displayPrinter.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(0)))
	if symbol, ok := currencySymbols[code]; ok {
		return symbol + formatted
	}
	return code + " " + formatted
}

var stageDisplayNames = map[types.Stage]string{
	types.StageInterested:  "Interested",
	types.StageContacted:   "Contacted",
	types.StageDemo:        "Demo",
	types.StageProposal:    "Proposal",
	types.StageNegotiation: "Negotiation",
	types.StageWon:         "Won",
	types.StageLost:        "Lost",
}

// GetStageDisplayName returns the human label for a canonical stage.
// Unknown input defaults to "Interested", mirroring MapStage's own default.
func GetStageDisplayName(stage types.Stage) string {
	if name, ok := stageDisplayNames[stage]; ok {
		return name
	}
	return "Interested"
}
