package fundamentus

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockPage = `<html><body>
<table>
<tr><td class="label"><span class="txt">Papel</span></td><td class="data"><span class="txt">PETR4</span></td>
    <td class="label"><span class="txt">Cotação</span></td><td class="data"><span class="txt">32,18</span></td></tr>
<tr><td class="label"><span class="txt">Tipo</span></td><td class="data"><span class="txt">PN</span></td>
    <td class="label"><span class="txt">Empresa</span></td><td class="data"><span class="txt">PETROBRAS PN</span></td></tr>
<tr><td class="label"><span class="txt">Setor</span></td><td class="data"><span class="txt">Petróleo, Gás e Biocombustíveis</span></td>
    <td class="label"><span class="txt">Subsetor</span></td><td class="data"><span class="txt">Exploração e Refino</span></td></tr>
</table>
<table>
<tr><td class="label"><span class="txt">Valor de mercado</span></td><td class="data"><span class="txt">419.000.000.000</span></td></tr>
<tr><td class="label"><span class="txt">P/L</span></td><td class="data"><span class="txt">4,11</span></td>
    <td class="label"><span class="txt">P/VP</span></td><td class="data"><span class="txt">1,05</span></td></tr>
<tr><td class="label"><span class="txt">Div. Yield</span></td><td class="data"><span class="txt">18,4%</span></td>
    <td class="label"><span class="txt">ROE</span></td><td class="data"><span class="txt">25,6%</span></td></tr>
<tr><td class="label"><span class="txt">EV / EBITDA</span></td><td class="data"><span class="txt">2,90</span></td>
    <td class="label"><span class="txt">Marg. Líquida</span></td><td class="data"><span class="txt">-</span></td></tr>
</table>
</body></html>`

const fiiPage = `<html><body>
<table>
<tr><td class="label"><span class="txt">FII</span></td><td class="data"><span class="txt">HGLG11</span></td>
    <td class="label"><span class="txt">Cotação</span></td><td class="data"><span class="txt">158,90</span></td></tr>
<tr><td class="label"><span class="txt">Segmento</span></td><td class="data"><span class="txt">Logística</span></td>
    <td class="label"><span class="txt">Mandato</span></td><td class="data"><span class="txt">Renda</span></td></tr>
</table>
<table>
<tr><td class="label"><span class="txt">FFO Yield</span></td><td class="data"><span class="txt">8,1%</span></td>
    <td class="label"><span class="txt">Div. Yield</span></td><td class="data"><span class="txt">8,9%</span></td></tr>
<tr><td class="label"><span class="txt">P/VP</span></td><td class="data"><span class="txt">0,98</span></td>
    <td class="label"><span class="txt">Nro. Cotas</span></td><td class="data"><span class="txt">16.500.000</span></td></tr>
<tr><td class="label"><span class="txt">Vacância Média</span></td><td class="data"><span class="txt">4,0%</span></td></tr>
</table>
</body></html>`

const bankPage = `<html><body>
<table>
<tr><td class="label"><span class="txt">Papel</span></td><td class="data"><span class="txt">ITUB4</span></td>
    <td class="label"><span class="txt">Cotação</span></td><td class="data"><span class="txt">34,50</span></td></tr>
<tr><td class="label"><span class="txt">Setor</span></td><td class="data"><span class="txt">Intermediários Financeiros</span></td>
    <td class="label"><span class="txt">Subsetor</span></td><td class="data"><span class="txt">Bancos</span></td></tr>
</table>
<table>
<tr><td class="label"><span class="txt">Cart. de Crédito</span></td><td class="data"><span class="txt">1.200.000.000.000</span></td>
    <td class="label"><span class="txt">Depósitos</span></td><td class="data"><span class="txt">980.000.000.000</span></td></tr>
<tr><td class="label"><span class="txt">ROE</span></td><td class="data"><span class="txt">20,9%</span></td></tr>
</table>
</body></html>`

func parseFixture(t *testing.T, html string) *page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return parsePage(doc)
}

func TestDetectAssetTypeStock(t *testing.T) {
	p := parseFixture(t, stockPage)
	assert.Equal(t, AssetStock, detectAssetType("PETR4", p))
}

func TestDetectAssetTypeFII(t *testing.T) {
	p := parseFixture(t, fiiPage)
	assert.Equal(t, AssetFII, detectAssetType("HGLG11", p))
}

func TestDetectAssetTypeUnit(t *testing.T) {
	// 11 suffix without FII fields is a unit
	p := parseFixture(t, stockPage)
	assert.Equal(t, AssetUnit, detectAssetType("TAEE11", p))
}

func TestDetectAssetTypeBank(t *testing.T) {
	p := parseFixture(t, bankPage)
	assert.Equal(t, AssetBank, detectAssetType("ITUB4", p))
}

func TestStockExtraction(t *testing.T) {
	p := parseFixture(t, stockPage)
	data := stockExtractor.extract(p)

	assert.InDelta(t, 32.18, data["price"], 1e-9)
	assert.InDelta(t, 4.11, data["p_l"], 1e-9)
	assert.InDelta(t, 1.05, data["p_vp"], 1e-9)
	assert.InDelta(t, 18.4, data["dy"], 1e-9)
	assert.InDelta(t, 25.6, data["roe"], 1e-9)
	assert.InDelta(t, 2.90, data["ev_ebitda"], 1e-9)
	assert.InDelta(t, 419e9, data["market_cap"], 1)
	assert.Equal(t, "PETROBRAS PN", data["company_name"])

	// dash cells stay absent, not zero
	_, present := data["net_margin"]
	assert.False(t, present)
}

func TestFIIExtraction(t *testing.T) {
	p := parseFixture(t, fiiPage)
	data := fiiExtractor.extract(p)

	assert.InDelta(t, 158.90, data["price"], 1e-9)
	assert.InDelta(t, 0.98, data["p_vp"], 1e-9)
	assert.InDelta(t, 8.1, data["ffo_yield"], 1e-9)
	assert.InDelta(t, 8.9, data["dy"], 1e-9)
	assert.InDelta(t, 4.0, data["avg_vacancy"], 1e-9)
	assert.InDelta(t, 16_500_000, data["quota_count"], 1)
	assert.Equal(t, "Logística", data["segment"])
}

func TestBankExtraction(t *testing.T) {
	p := parseFixture(t, bankPage)
	data := bankExtractor.extract(p)

	assert.InDelta(t, 34.50, data["price"], 1e-9)
	assert.InDelta(t, 20.9, data["roe"], 1e-9)
	assert.InDelta(t, 1.2e12, data["credit_portfolio"], 1)
	assert.InDelta(t, 9.8e11, data["deposits"], 1)
}
