package portal

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type htmlPage struct {
	Title        string
	HasPassword  bool
	MentionsAuth bool
}

// inspectHTML extracts what is needed to tell a portal login page from other HTML.
// Unparseable input yields an empty page.
func inspectHTML(raw []byte) htmlPage {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return htmlPage{}
	}
	page := htmlPage{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		HasPassword: doc.Find(`input[type="password"]`).Length() > 0,
	}
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		action, _ := form.Attr("action")
		if looksLikeSessionProblem(action) {
			page.MentionsAuth = true
			return false
		}
		return true
	})
	return page
}

func (p htmlPage) isLoginPage() bool {
	return strings.Contains(p.Title, "UrbOnLine") || p.HasPassword || p.MentionsAuth
}
