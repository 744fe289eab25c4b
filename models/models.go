package models

// FeedRequest is a single request for a configured feed
type FeedRequest struct {
	FeedID     string
	DateFormat string
	ImageSize  string
}

// FormatOptions controls how items are reshaped for display
type FormatOptions struct {
	// Date pattern for pubDate; empty selects the default "F j, Y"
	DateFormat string
	// Inserted as w_<ImageSize> into rewritten thumbnail paths
	ImageSize string
}

func (r FeedRequest) FormatOptions() FormatOptions {
	return FormatOptions{
		DateFormat: r.DateFormat,
		ImageSize:  r.ImageSize,
	}
}

// FeedItem is one normalized <item> of a feed
type FeedItem struct {
	Guid        string  `json:"guid"`
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	Description string  `json:"description"`
	Content     string  `json:"content"`
	Thumbnail   *string `json:"thumbnail"`
	Author      *string `json:"author"`
	PubDate     string  `json:"pubDate"`
	Category    string  `json:"category"`
}

type FeedResponse struct {
	Items []FeedItem `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Envelope is the outcome of a feed request, either items or an error
type Envelope struct {
	Status int
	Items  []FeedItem
	Error  string
}

// Body returns the JSON body for the envelope
func (e Envelope) Body() interface{} {
	if e.Error != "" {
		return ErrorResponse{Error: e.Error}
	}

	items := e.Items
	if items == nil {
		items = []FeedItem{}
	}
	return FeedResponse{Items: items}
}
