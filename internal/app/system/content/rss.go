package content

import (
	"io"
	"strings"

	"github.com/gorilla/feeds"
)

// Feed describes the channel of an RSS document.
type Feed struct {
	Title       string
	Description string
	SiteURL     string // absolute, without trailing slash
	Language    string
}

// WriteRSS writes entries as an RSS 2.0 document.
func WriteRSS(w io.Writer, feed Feed, entries []*Entry) error {
	site := strings.TrimRight(feed.SiteURL, "/")
	f := &feeds.Feed{
		Title:       feed.Title,
		Link:        &feeds.Link{Href: site + BlogBase},
		Description: feed.Description,
	}
	if len(entries) > 0 {
		f.Updated = entries[0].Date
	}
	for _, e := range entries {
		item := &feeds.Item{
			Title:       e.Title,
			Link:        &feeds.Link{Href: site + e.URL},
			Id:          site + e.URL,
			Description: e.Description,
			Created:     e.Date,
		}
		if e.Author != "" {
			item.Author = &feeds.Author{Name: e.Author}
		}
		f.Items = append(f.Items, item)
	}

	rss := (&feeds.Rss{Feed: f}).RssFeed()
	rss.Language = feed.Language
	for i, e := range entries {
		rss.Items[i].Category = strings.Join(e.Tags, ", ")
	}
	return feeds.WriteXML(rss, w)
}
