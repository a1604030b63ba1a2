package rules

import (
	"net/url"
	"strings"
)

const (
	arxivRSSBaseURL    = "https://rss.arxiv.org/rss/"
	arxivExportBaseURL = "https://export.arxiv.org/rss/"
	youtubeFeedURL     = "https://www.youtube.com/feeds/videos.xml"
)

// RedditMirror serves subreddit and thread pages from their .rss endpoint.
type RedditMirror struct{}

func (RedditMirror) Name() string { return "reddit" }

func (RedditMirror) Resolve(u *url.URL) []string {
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" || strings.HasSuffix(path, ".rss") {
		return nil
	}
	return []string{"https://www.reddit.com" + path + "/.rss"}
}

// YouTubeMirror maps channel and playlist pages to the public video feed.
type YouTubeMirror struct{}

func (YouTubeMirror) Name() string { return "youtube" }

func (YouTubeMirror) Resolve(u *url.URL) []string {
	segments := splitPath(u.Path)
	q := url.Values{}
	switch {
	case len(segments) >= 2 && segments[0] == "channel":
		q.Set("channel_id", segments[1])
	case u.Query().Get("list") != "":
		q.Set("playlist_id", u.Query().Get("list"))
	default:
		return nil
	}
	return []string{youtubeFeedURL + "?" + q.Encode()}
}

// GitHubMirror follows a repository through its release and commit feeds.
type GitHubMirror struct{}

func (GitHubMirror) Name() string { return "github" }

func (GitHubMirror) Resolve(u *url.URL) []string {
	segments := splitPath(u.Path)
	if len(segments) < 2 {
		return nil
	}
	repo := "https://github.com/" + segments[0] + "/" + segments[1]
	return []string{repo + "/releases.atom", repo + "/commits.atom"}
}

// ArxivMirror maps category listings (/list/cs.AI/...) to the category RSS feeds.
type ArxivMirror struct{}

func (ArxivMirror) Name() string { return "arxiv" }

func (ArxivMirror) Resolve(u *url.URL) []string {
	segments := splitPath(u.Path)
	if len(segments) < 2 || segments[0] != "list" {
		return nil
	}
	category := segments[1]
	return []string{arxivRSSBaseURL + category, arxivExportBaseURL + category}
}

func splitPath(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
