package aggregator

// metricAliases lists, per canonical metric, the field names sources use for
// it. The first alias found in a payload wins, one value per source.
var fundamentalAliases = map[string][]string{
	"p_l":            {"p_l", "pl", "p/l", "pe", "price_earnings", "preco_lucro"},
	"p_vp":           {"p_vp", "pvp", "p/vp", "pb", "price_to_book", "preco_valor_patrimonial"},
	"dy":             {"dy", "dividend_yield", "div_yield", "yield"},
	"roe":            {"roe", "return_on_equity"},
	"roa":            {"roa", "return_on_assets"},
	"roic":           {"roic"},
	"ev_ebitda":      {"ev_ebitda", "ev/ebitda", "enterprise_value_ebitda"},
	"ebitda_margin":  {"ebitda_margin", "margem_ebitda"},
	"net_margin":     {"net_margin", "margem_liquida"},
	"gross_margin":   {"gross_margin", "margem_bruta"},
	"market_cap":     {"market_cap", "valor_mercado", "market_capitalization"},
	"eps":            {"eps", "lpa", "earnings_per_share"},
	"bvps":           {"bvps", "vpa", "book_value_per_share"},
	"debt_to_equity": {"debt_to_equity", "div_patrimonio", "net_debt_equity"},
	"net_debt_ebitda": {"net_debt_ebitda", "divida_liquida_ebitda"},
	"current_ratio":  {"current_ratio", "liquidez_corrente"},
	"equity":         {"equity", "patrimonio_liquido"},
	"net_income":     {"net_income", "lucro_liquido"},
	"net_revenue":    {"net_revenue", "receita_liquida"},
}

var technicalAliases = map[string][]string{
	"price":          {"price", "last_price", "cotacao", "regular_market_price", "close"},
	"volume":         {"volume", "regular_market_volume", "avg_volume_2m"},
	"change_percent": {"change_percent", "daily_change", "variation", "regular_market_change_percent"},
	"open":           {"open", "regular_market_open"},
	"day_high":       {"day_high", "high", "regular_market_day_high"},
	"day_low":        {"day_low", "low", "regular_market_day_low"},
	"previous_close": {"previous_close", "regular_market_previous_close"},
	"high_52w":       {"high_52w", "max_52_sem", "fifty_two_week_high"},
	"low_52w":        {"low_52w", "min_52_sem", "fifty_two_week_low"},
	"rsi":            {"rsi", "rsi_14"},
	"macd":           {"macd"},
	"sma_20":         {"sma_20", "ma_20", "sma20"},
	"sma_50":         {"sma_50", "ma_50", "sma50"},
	"sma_200":        {"sma_200", "ma_200", "sma200"},
	"bollinger_upper": {"bollinger_upper", "bb_upper"},
	"bollinger_lower": {"bollinger_lower", "bb_lower"},
}

// percentageMetrics are reported as decimals: a face value above 1 is
// divided by 100, so 15, 0.15 and "15%" all normalize to 0.15.
var percentageMetrics = map[string]bool{
	"dy":             true,
	"roe":            true,
	"roa":            true,
	"roic":           true,
	"ebitda_margin":  true,
	"net_margin":     true,
	"gross_margin":   true,
	"change_percent": false, // daily variation stays on the face scale
}

// textAliases covers the non-numeric classification fields sources report.
var textAliases = map[string][]string{
	"asset_type": {"asset_type"},
	"sector":     {"sector", "setor"},
	"subsector":  {"subsector", "subsetor"},
	"segment":    {"segment", "segmento"},
}

// nestedSections are payload sections searched for aliases after the top
// level.
var nestedSections = []string{"fundamentals", "indicators", "data", "metrics"}

// newsListKeys and insiderListKeys locate per-result item lists.
var newsListKeys = []string{"news", "articles", "items"}

var insiderListKeys = []string{"insider_trading", "transactions"}
