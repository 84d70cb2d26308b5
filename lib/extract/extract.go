// Package extract reads the latest assistant answer from an AI page.
package extract

import (
	"context"
	"strings"

	"github.com/onkernel/aibridge/lib/sites"
)

// Source returns the text content of every element matching selector, in
// document order.
type Source interface {
	Texts(ctx context.Context, selector string) ([]string, error)
}

type Extractor struct {
	source   Source
	selector string
}

func New(site sites.Site, source Source) *Extractor {
	return &Extractor{source: source, selector: site.Response()}
}

// Latest returns the trimmed text of the last response container. Response
// containers accumulate in document order, so the last one is the newest.
func (e *Extractor) Latest(ctx context.Context) (string, bool, error) {
	texts, err := e.source.Texts(ctx, e.selector)
	if err != nil {
		return "", false, err
	}
	if len(texts) == 0 {
		return "", false, nil
	}
	content := strings.TrimSpace(texts[len(texts)-1])
	return content, content != "", nil
}
