// Package parser turns a raw RSS document into normalized feed items
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"feedgrid/models"

	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

var (
	ErrEmptyBody  = errors.New("empty feed body")
	ErrInvalidXML = errors.New("invalid XML")
)

const thumbnailMarker = "/master/pass/"

type Parser struct {
	rss *rss.Parser
}

func New() *Parser {
	return &Parser{rss: &rss.Parser{}}
}

// Parse extracts every <item> of the document's channel in document order.
// A single bad item date never fails the whole document.
func (p *Parser) Parse(body string, opts models.FormatOptions) ([]models.FeedItem, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	doc, err := channelDocument(body)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Rejected feed document")
		return nil, fmt.Errorf("%w: %v", ErrInvalidXML, err)
	}

	feed, err := p.rss.Parse(strings.NewReader(doc))
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to parse feed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidXML, err)
	}

	items := make([]models.FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, normalize(item, opts))
	}

	return items, nil
}

// channelDocument decodes the whole body as XML and returns a UTF-8 document
// holding only the first <channel> child of the root element. Items outside
// that channel are not part of the feed. The wrapper carries the root's
// namespace declarations so prefixed elements still resolve.
func channelDocument(body string) (string, error) {
	var (
		converted bytes.Buffer
		prefixEnd = -1
	)

	decoder := xml.NewDecoder(strings.NewReader(body))
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		r, err := charset.NewReaderLabel(label, input)
		if err != nil {
			return nil, err
		}
		// Offsets past this point count bytes of the converted stream
		prefixEnd = int(decoder.InputOffset())
		return io.TeeReader(r, &converted), nil
	}

	root, err := rootElement(decoder)
	if err != nil {
		return "", err
	}

	start, end := -1, -1
	for {
		offset := decoder.InputOffset()
		tok, err := decoder.Token()
		if err != nil {
			return "", err
		}
		if _, ok := tok.(xml.EndElement); ok {
			break
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if err := decoder.Skip(); err != nil {
			return "", err
		}
		if start < 0 && el.Name.Local == "channel" {
			start, end = int(offset), int(decoder.InputOffset())
		}
	}
	if start < 0 {
		return "", fmt.Errorf("missing channel element in <%s>", root.Name.Local)
	}

	if err := checkTrailing(decoder); err != nil {
		return "", err
	}

	text := body
	if prefixEnd >= 0 {
		text = body[:prefixEnd] + converted.String()
	}

	var doc strings.Builder
	doc.WriteString(`<rss version="2.0"`)
	for _, attr := range root.Attr {
		switch {
		case attr.Name.Space == "xmlns":
			fmt.Fprintf(&doc, ` xmlns:%s="`, attr.Name.Local)
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			doc.WriteString(` xmlns="`)
		default:
			continue
		}
		xml.EscapeText(&doc, []byte(attr.Value))
		doc.WriteByte('"')
	}
	doc.WriteByte('>')
	doc.WriteString(text[start:end])
	doc.WriteString("</rss>")

	return doc.String(), nil
}

// rootElement skips the prolog and returns the root start element
func rootElement(decoder *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, errors.New("missing root element")
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.CharData:
			if len(strings.TrimSpace(string(t))) > 0 {
				return xml.StartElement{}, errors.New("content before root element")
			}
		}
	}
}

// checkTrailing allows only whitespace, comments and processing instructions
// after the root element
func checkTrailing(decoder *xml.Decoder) error {
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return fmt.Errorf("extra element <%s> after root", t.Name.Local)
		case xml.CharData:
			if len(strings.TrimSpace(string(t))) > 0 {
				return errors.New("extra content after root element")
			}
		}
	}
}

func normalize(item *rss.Item, opts models.FormatOptions) models.FeedItem {
	normalized := models.FeedItem{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Content:     item.Content,
		Thumbnail:   thumbnail(item.Extensions, opts.ImageSize),
		Author:      author(item),
		PubDate:     formatPubDate(item.PubDate, item.PubDateParsed, opts.DateFormat),
	}

	if item.GUID != nil {
		normalized.Guid = item.GUID.Value
	}

	if category, ok := lo.First(item.Categories); ok && category != nil {
		normalized.Category = category.Value
	}

	return normalized
}

// thumbnail returns the url attribute of the first media:thumbnail
func thumbnail(extensions ext.Extensions, imageSize string) *string {
	thumbnails := extensions["media"]["thumbnail"]
	if len(thumbnails) == 0 {
		return nil
	}

	url, ok := thumbnails[0].Attrs["url"]
	if !ok {
		return nil
	}

	if imageSize != "" {
		url = ResizeThumbnail(url, imageSize)
	}
	return &url
}

// ResizeThumbnail inserts w_<size> after every /master/pass/ path segment.
// URLs without the marker are returned unchanged.
func ResizeThumbnail(url, size string) string {
	return strings.ReplaceAll(url, thumbnailMarker, thumbnailMarker+"w_"+size+"/")
}

// author returns the first dc:creator
func author(item *rss.Item) *string {
	if item.DublinCoreExt == nil {
		return nil
	}
	creator, ok := lo.First(item.DublinCoreExt.Creator)
	if !ok {
		return nil
	}
	return &creator
}
