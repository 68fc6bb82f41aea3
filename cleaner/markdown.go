package cleaner

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// newMarkdownConverter builds the converter shared by every Clean call.
// Tables keep minimal cell padding; the base plugin drops script, style
// and head content.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// markdown converts an HTML document, resolving relative links and image
// sources against pageURL, and collapses runs of blank lines.
func (c *Cleaner) markdown(doc, pageURL string) (string, error) {
	md, err := c.mdConverter.ConvertString(doc, converter.WithDomain(pageURL))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(md, "\n\n")), nil
}
