package parser_test

import (
	"testing"

	"feedgrid/models"
	"feedgrid/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
	xmlns:content="http://purl.org/rss/1.0/modules/content/"
	xmlns:dc="http://purl.org/dc/elements/1.1/"
	xmlns:media="http://search.yahoo.com/mrss/">
<channel>
	<title>Example</title>
	<link>https://example.com/</link>
	<description>Example feed</description>
	<item>
		<title>First &amp; foremost</title>
		<link>https://example.com/first</link>
		<guid isPermaLink="false">guid-1</guid>
		<description><![CDATA[<p>First <b>item</b></p>]]></description>
		<content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>
		<dc:creator><![CDATA[Jane Doe]]></dc:creator>
		<category>Science</category>
		<category>Space</category>
		<pubDate>Wed, 08 Oct 2025 10:00:00 GMT</pubDate>
		<media:thumbnail url="https://media.example.com/photos/1/master/pass/img.jpg" width="2400" height="1600"/>
	</item>
	<item>
		<title>Second</title>
		<link>https://example.com/second</link>
		<guid>guid-2</guid>
		<description>Plain text</description>
		<pubDate>not a date</pubDate>
		<media:thumbnail url="https://media.example.com/photos/2/img.jpg"/>
	</item>
	<item>
		<title>Third</title>
		<link>https://example.com/third</link>
		<guid>guid-3</guid>
		<description>No extras</description>
		<pubDate>Thu, 09 Oct 2025 23:30:00 +0200</pubDate>
	</item>
</channel>
</rss>`

func TestParseExtractsItemsInDocumentOrder(t *testing.T) {
	items, err := parser.New().Parse(sampleFeed, models.FormatOptions{})
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "guid-1", first.Guid)
	assert.Equal(t, "First & foremost", first.Title)
	assert.Equal(t, "https://example.com/first", first.Link)
	assert.Equal(t, "<p>First <b>item</b></p>", first.Description)
	assert.Equal(t, "<p>Full body</p>", first.Content)
	require.NotNil(t, first.Thumbnail)
	assert.Equal(t, "https://media.example.com/photos/1/master/pass/img.jpg", *first.Thumbnail)
	require.NotNil(t, first.Author)
	assert.Equal(t, "Jane Doe", *first.Author)
	assert.Equal(t, "October 8, 2025", first.PubDate)
	assert.Equal(t, "Science", first.Category)

	second := items[1]
	assert.Equal(t, "guid-2", second.Guid)
	assert.Equal(t, "", second.Content)
	assert.Nil(t, second.Author)
	assert.Equal(t, "not a date", second.PubDate)
	assert.Equal(t, "", second.Category)

	third := items[2]
	assert.Equal(t, "guid-3", third.Guid)
	assert.Nil(t, third.Thumbnail)
	// The source offset is kept, so the day does not roll over to UTC
	assert.Equal(t, "October 9, 2025", third.PubDate)
}

func TestParseDateFormatOption(t *testing.T) {
	items, err := parser.New().Parse(sampleFeed, models.FormatOptions{DateFormat: "Y-m-d"})
	require.NoError(t, err)

	assert.Equal(t, "2025-10-08", items[0].PubDate)
	assert.Equal(t, "not a date", items[1].PubDate)
	assert.Equal(t, "2025-10-09", items[2].PubDate)
}

func TestParseImageSizeOption(t *testing.T) {
	items, err := parser.New().Parse(sampleFeed, models.FormatOptions{ImageSize: "300"})
	require.NoError(t, err)

	require.NotNil(t, items[0].Thumbnail)
	assert.Equal(t, "https://media.example.com/photos/1/master/pass/w_300/img.jpg", *items[0].Thumbnail)

	// No marker, no rewrite
	require.NotNil(t, items[1].Thumbnail)
	assert.Equal(t, "https://media.example.com/photos/2/img.jpg", *items[1].Thumbnail)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected error
	}{
		{
			name:     "empty body",
			body:     "",
			expected: parser.ErrEmptyBody,
		},
		{
			name:     "not xml",
			body:     "this is not xml",
			expected: parser.ErrInvalidXML,
		},
		{
			name:     "truncated document",
			body:     `<rss version="2.0"><channel><item><title>x</title>`,
			expected: parser.ErrInvalidXML,
		},
		{
			name:     "mismatched tags",
			body:     `<rss><channel><item></channel></item></rss>`,
			expected: parser.ErrInvalidXML,
		},
		{
			name:     "missing channel",
			body:     `<rss version="2.0"></rss>`,
			expected: parser.ErrInvalidXML,
		},
		{
			name:     "whitespace only",
			body:     "   \n",
			expected: parser.ErrInvalidXML,
		},
		{
			name:     "trailing garbage",
			body:     `<rss><channel></channel></rss><rss></rss>`,
			expected: parser.ErrInvalidXML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := parser.New().Parse(tt.body, models.FormatOptions{})
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, items)
		})
	}
}

func TestParseEmptyChannel(t *testing.T) {
	items, err := parser.New().Parse(`<rss version="2.0"><channel><title>t</title></channel></rss>`, models.FormatOptions{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestParseNonUTF8Charset(t *testing.T) {
	body := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		"<rss version=\"2.0\"><channel><title>t</title><item><title>Caf\xe9</title><guid>g</guid></item></channel></rss>"

	items, err := parser.New().Parse(body, models.FormatOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "g", items[0].Guid)
	assert.Equal(t, "Caf\u00e9", items[0].Title)
}

func TestParseOnlyFirstChannel(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []string
	}{
		{
			name: "items after the channel",
			body: `<rss version="2.0"><channel><title>t</title>
				<item><guid>in</guid></item>
			</channel>
			<item><guid>outside</guid></item></rss>`,
			expected: []string{"in"},
		},
		{
			name: "two channels",
			body: `<rss version="2.0">
				<channel><title>c1</title><item><guid>c1</guid></item></channel>
				<channel><title>c2</title><item><guid>c2</guid></item></channel>
			</rss>`,
			expected: []string{"c1"},
		},
		{
			name: "rdf items are siblings of the channel",
			body: `<?xml version="1.0"?>
			<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
				<channel rdf:about="https://example.com/">
					<title>t</title>
					<link>https://example.com/</link>
					<description>d</description>
					<items><rdf:Seq><rdf:li rdf:resource="https://example.com/1"/></rdf:Seq></items>
				</channel>
				<item rdf:about="https://example.com/1">
					<title>rdf-item</title>
					<link>https://example.com/1</link>
				</item>
			</rdf:RDF>`,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := parser.New().Parse(tt.body, models.FormatOptions{})
			require.NoError(t, err)

			guids := make([]string, 0, len(items))
			for _, item := range items {
				guids = append(guids, item.Guid)
			}
			assert.Equal(t, tt.expected, guids)
		})
	}
}

func TestParseRootNamespaceAuthor(t *testing.T) {
	body := `<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/"><channel>
		<item><guid>ns</guid><dc:creator>Jane Doe</dc:creator></item>
	</channel></rss>`

	items, err := parser.New().Parse(body, models.FormatOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Author)
	assert.Equal(t, "Jane Doe", *items[0].Author)
}

// Text fields come through gofeed, which trims surrounding whitespace and
// keeps element children of a text field as markup
func TestParseTextFields(t *testing.T) {
	body := `<rss version="2.0"><channel><item>
		<guid>  g1  </guid>
		<title>
			Padded title
		</title>
		<link> https://example.com/padded </link>
		<description>Hello <b>bold</b> world</description>
	</item></channel></rss>`

	items, err := parser.New().Parse(body, models.FormatOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "g1", items[0].Guid)
	assert.Equal(t, "Padded title", items[0].Title)
	assert.Equal(t, "https://example.com/padded", items[0].Link)
	assert.Equal(t, "Hello <b>bold</b> world", items[0].Description)
}

func TestResizeThumbnail(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		size     string
		expected string
	}{
		{
			name:     "marker present",
			url:      "https://x/media/master/pass/img.jpg",
			size:     "300",
			expected: "https://x/media/master/pass/w_300/img.jpg",
		},
		{
			name:     "marker absent",
			url:      "https://x/media/img.jpg",
			size:     "300",
			expected: "https://x/media/img.jpg",
		},
		{
			name:     "partial marker",
			url:      "https://x/master/passport/img.jpg",
			size:     "640",
			expected: "https://x/master/passport/img.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parser.ResizeThumbnail(tt.url, tt.size))
		})
	}
}
