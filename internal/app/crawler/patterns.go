package crawler

import (
	"fmt"
	"regexp"

	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
)

// Patterns run against the window that follows the anchor phrase and capture the percentage in the
// "rate" group. This is the shaky part: they follow the wording of the Service-Public fact sheets, so
// when a sheet is reworded only the list of the affected product needs to change.
const (
	declaredAs  = `est (?:fix[eé](?: [àa])?|de)\s*`
	ratePercent = `(?P<rate>\d+(?:[.,]\d+)?)\s*%`
)

var productPatterns = map[model.ProductID][]*regexp.Regexp{
	model.ProductLivretA: {
		declaredPattern(`livret a`, 120),
	},
	model.ProductLDDS: {
		declaredPattern(`ldds|livret de d[eé]veloppement durable et solidaire`, 160),
	},
	model.ProductLEP: {
		declaredPattern(`lep|livret d'[eé]pargne populaire`, 160),
	},
	model.ProductCEL: {
		declaredPattern(`cel|compte d'[eé]pargne logement|compte [eé]pargne logement`, 160),
	},
	model.ProductPELNew: {
		declaredPattern(`pel|plan d'[eé]pargne logement|plan [eé]pargne logement`, 220),
	},
}

// declaredPattern matches "... <names> ... est fixé à X %" in the sentence the anchor phrase opens.
func declaredPattern(names string, span int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^[^.]{0,%d}?\b(?:%s)\b[^.]{0,%d}?%s%s`, span, names, span, declaredAs, ratePercent))
}
