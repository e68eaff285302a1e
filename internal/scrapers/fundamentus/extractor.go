package fundamentus

import (
	"github.com/rmarinho/garimpo/internal/scrapers"
)

// extractor converts a parsed page into the canonical payload for one asset
// type. Each variant owns its label -> field map; numeric values go through
// the Brazilian locale parser, everything else stays a string.
type extractor struct {
	numeric map[string]string // site label -> canonical field
	text    map[string]string
}

// commonNumeric are the labels shared by every equity-like page.
var commonNumeric = map[string]string{
	"cotação":         "price",
	"p/l":             "p_l",
	"p/vp":            "p_vp",
	"div. yield":      "dy",
	"valor de mercado": "market_cap",
	"valor da firma":  "enterprise_value",
	"nro. ações":      "shares_outstanding",
	"vol $ méd (2m)":  "avg_volume_2m",
	"min 52 sem":      "low_52w",
	"max 52 sem":      "high_52w",
}

var commonText = map[string]string{
	"setor":    "sector",
	"subsetor": "subsector",
	"empresa":  "company_name",
	"tipo":     "share_type",
}

var stockExtractor = &extractor{
	numeric: merge(commonNumeric, map[string]string{
		"p/ebit":         "p_ebit",
		"psr":            "psr",
		"p/ativos":       "p_assets",
		"p/cap. giro":    "p_working_capital",
		"p/ativ circ liq": "p_net_current_assets",
		"ev / ebitda":    "ev_ebitda",
		"ev / ebit":      "ev_ebit",
		"lpa":            "eps",
		"vpa":            "bvps",
		"marg. bruta":    "gross_margin",
		"marg. ebit":     "ebit_margin",
		"marg. líquida":  "net_margin",
		"ebit / ativo":   "ebit_assets",
		"roic":           "roic",
		"roe":            "roe",
		"liquidez corr":  "current_ratio",
		"div br/ patrim": "debt_to_equity",
		"giro ativos":    "asset_turnover",
		"cres. rec (5a)": "revenue_growth_5y",
		"ativo":          "total_assets",
		"dív. bruta":     "gross_debt",
		"dív. líquida":   "net_debt",
		"patrim. líq":    "equity",
		"receita líquida": "net_revenue",
		"ebit":           "ebit",
		"lucro líquido":  "net_income",
	}),
	text: commonText,
}

var bankExtractor = &extractor{
	numeric: merge(commonNumeric, map[string]string{
		"lpa":              "eps",
		"vpa":              "bvps",
		"roe":              "roe",
		"cart. de crédito": "credit_portfolio",
		"depósitos":        "deposits",
		"patrim. líq":      "equity",
		"result int financ": "financial_intermediation",
		"rec serviços":     "service_revenue",
		"lucro líquido":    "net_income",
	}),
	text: commonText,
}

var fiiExtractor = &extractor{
	numeric: map[string]string{
		"cotação":          "price",
		"p/vp":             "p_vp",
		"div. yield":       "dy",
		"valor de mercado": "market_cap",
		"nro. cotas":       "quota_count",
		"ffo yield":        "ffo_yield",
		"ffo/cota":         "ffo_per_quota",
		"div/cota":         "dividend_per_quota",
		"vp/cota":          "book_value_per_quota",
		"ativos":           "total_assets",
		"patrim líquido":   "equity",
		"qtd imóveis":      "property_count",
		"vacância média":   "avg_vacancy",
		"min 52 sem":       "low_52w",
		"max 52 sem":       "high_52w",
	},
	text: map[string]string{
		"segmento": "segment",
		"mandato":  "mandate",
		"gestão":   "management_type",
		"fii":      "fund_name",
	},
}

// extractorFor routes an asset type to its extractor. Units, holdings and
// insurers read like regular stocks; banks and FIIs have their own layouts.
func extractorFor(assetType AssetType) *extractor {
	switch assetType {
	case AssetFII:
		return fiiExtractor
	case AssetBank:
		return bankExtractor
	default:
		return stockExtractor
	}
}

// percentFields hold percentages; the aggregator expects their values on
// the face scale (15 for 15%), normalization to fractions happens there.
var percentFields = map[string]bool{
	"dy": true, "roe": true, "roic": true, "gross_margin": true,
	"ebit_margin": true, "net_margin": true, "revenue_growth_5y": true,
	"ffo_yield": true, "avg_vacancy": true, "ebit_assets": true,
}

func (e *extractor) extract(p *page) map[string]interface{} {
	data := make(map[string]interface{})

	for label, field := range e.numeric {
		raw, ok := p.values[label]
		if !ok || scrapers.IsNullValue(raw) {
			continue
		}
		if value, parsed := scrapers.ParseNumberBR(raw); parsed {
			data[field] = value
		}
	}

	for label, field := range e.text {
		if raw, ok := p.values[label]; ok && !scrapers.IsNullValue(raw) {
			data[field] = raw
		}
	}

	return data
}

func merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
