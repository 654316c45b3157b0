package sources

import (
	"encoding/xml"
	"strings"
)

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

func parseRSS(body []byte) ([]rssItem, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}
	items := feed.Channel.Items[:0]
	for _, item := range feed.Channel.Items {
		item.Title = strings.TrimSpace(item.Title)
		item.Link = strings.TrimSpace(firstNonEmpty(item.Link, item.GUID))
		if item.Title == "" || item.Link == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
