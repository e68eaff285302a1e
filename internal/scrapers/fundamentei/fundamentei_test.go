package fundamentei

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyPage = `
<html><body>
<div data-rating-average="4,3" data-rating-count="1287"></div>
<div class="indicator"><span class="label">P/L</span><span class="value">6,80</span></div>
<div class="indicator"><span class="label">P/VP</span><span class="value">1,20</span></div>
<div class="indicator"><span class="label">DY</span><span class="value">9,5%</span></div>
<div class="indicator"><span class="label">ROE</span><span class="value">-</span></div>
<div class="indicator"><span class="label">Score Secreto</span><span class="value">99</span></div>
</body></html>`

const loginWallPage = `
<html><body>
<form action="/entrar" method="post">
  <input name="email" type="email"/>
  <input name="password" type="password"/>
</form>
</body></html>`

func parseDoc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtractRatings(t *testing.T) {
	data := extractRatings(parseDoc(t, companyPage))

	assert.Equal(t, 4.3, data["community_rating"])
	assert.Equal(t, 1287.0, data["rating_count"])
	assert.Equal(t, 6.80, data["p_l"])
	assert.Equal(t, 1.20, data["p_vp"])
	assert.Equal(t, 9.5, data["dy"])

	_, present := data["roe"]
	assert.False(t, present, "dash cells are omitted")
	assert.NotContains(t, data, "score secreto")
}

func TestIsLoginWall(t *testing.T) {
	assert.True(t, isLoginWall(parseDoc(t, loginWallPage)))
	assert.False(t, isLoginWall(parseDoc(t, companyPage)))
}
