package fundamentus

import (
	"strings"

	"github.com/rmarinho/garimpo/internal/common"
)

// AssetType selects the extractor used for a fetched page.
type AssetType string

const (
	AssetStock     AssetType = "stock"
	AssetBank      AssetType = "bank"
	AssetFII       AssetType = "fii"
	AssetInsurance AssetType = "insurance"
	AssetHolding   AssetType = "holding"
	AssetUnit      AssetType = "unit"
)

// fiiMarkers are field names only FII pages carry.
var fiiMarkers = []string{"ffo", "segmento", "nro. cotas"}

// bankMarkers are balance-sheet lines only bank pages carry.
var bankMarkers = []string{"cart. de crédito", "depósitos"}

// detectAssetType applies the discrimination rules in order. The 11 suffix
// alone does not make a FII; the page must also carry fund-specific fields,
// otherwise the paper is a unit and extracted as a stock.
func detectAssetType(ticker string, p *page) AssetType {
	if common.HasUnitSuffix(ticker) {
		if containsAny(p.fullText, fiiMarkers) {
			return AssetFII
		}
		return AssetUnit
	}

	if containsAny(p.fullText, bankMarkers) {
		return AssetBank
	}
	if strings.Contains(p.sector, "holdings") {
		return AssetHolding
	}
	if strings.Contains(p.subsector, "seguradoras") {
		return AssetInsurance
	}
	return AssetStock
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
