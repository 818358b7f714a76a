package rewriter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"feedhub/internal/canonical"
	"feedhub/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultFallback replaces an entry body that could not be processed at all.
const DefaultFallback = "Continue reading"

// linkAttrs maps an element to the attribute holding its link.
var linkAttrs = map[string]string{
	"img":    "src",
	"script": "src",
	"a":      "href",
}

const linkSelector = "img, script, a"

// Rewriter makes relative links inside entry bodies absolute.
type Rewriter struct {
	log      *slog.Logger
	fallback string
}

func New(log *slog.Logger, fallback string) *Rewriter {
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &Rewriter{
		log:      log.With(slog.String("component", "rewriter")),
		fallback: fallback,
	}
}

// Rewrite resolves every relative img/script/a link in body against base.
// Links that cannot be resolved are left as they are. If body cannot be
// processed at all, the fallback text is returned instead.
func (r *Rewriter) Rewrite(body, base string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	out, err := r.rewrite(strings.NewReader(body), base)
	if err != nil {
		r.log.Error("Entry body rewrite failed, using fallback",
			slog.String("base", base),
			slog.Any("error", err),
		)
		return r.fallback
	}
	return out
}

func (r *Rewriter) rewrite(src io.Reader, base string) (string, error) {
	bodyCtx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(src, bodyCtx)
	if err != nil {
		return "", fmt.Errorf("%w: parse: %v", domain.ErrHTMLProcessing, err)
	}
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	doc := goquery.NewDocumentFromNode(root)
	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		attr := linkAttrs[goquery.NodeName(s)]
		value, ok := s.Attr(attr)
		if !ok || strings.TrimSpace(value) == "" || !canonical.NeedsResolve(value) {
			return
		}
		resolved, err := canonical.Resolve(value, base)
		if err != nil {
			r.log.Debug("Leaving unresolvable link untouched",
				slog.String("attr", attr),
				slog.String("value", value),
				slog.Any("error", err),
			)
			return
		}
		s.SetAttr(attr, resolved)
	})
	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("%w: render: %v", domain.ErrHTMLProcessing, err)
	}
	return out, nil
}
