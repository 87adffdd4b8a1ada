package filmweb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/micielski/filmweb-export/pkg/whttp"
)

const DefaultBaseURL = "https://www.filmweb.pl"

// Credentials are the session cookie values the user copies out of a logged
// in browser. They are immutable for the process lifetime and must never be
// logged.
type Credentials struct {
	Username string
	Token    string // _fwuser_token cookie
	Session  string // _fwuser_sessionId cookie
	JWT      string // JWT cookie
}

// Validate checks for non-emptiness, nothing more; the preflight request is
// what actually proves the cookies work.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Token == "" || c.Session == "" || c.JWT == "" {
		return fmt.Errorf("username, token, session and jwt are all required")
	}
	return nil
}

func (c Credentials) cookieHeader() string {
	return fmt.Sprintf("_fwuser_token=%s; _fwuser_sessionId=%s; JWT=%s;",
		strings.TrimSpace(c.Token), strings.TrimSpace(c.Session), strings.TrimSpace(c.JWT))
}

// VoteDetails is the logged-vote API answer for one rated title.
type VoteDetails struct {
	Rate     int
	Favorite bool
	ViewDate int // YYYYMMDD, 0 if absent
}

// RatedAt renders ViewDate as an IMDb-style YYYY-MM-DD date, or "" when the
// site did not record one.
func (d VoteDetails) RatedAt() string {
	if d.ViewDate < 10000101 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.ViewDate/10000, d.ViewDate/100%100, d.ViewDate%100)
}

// UserCounts holds the per-list totals published on the user's profile page.
// Only used for progress output and an end-of-run sanity check.
type UserCounts struct {
	Films      int
	Serials    int
	Favorites  int
	WantsToSee int
}

// DistinctLowerBound is the fewest distinct titles these totals can describe.
// Lists overlap (a rated title is often also favorited), so the summed totals
// only bound the deduplicated dataset from above; the largest single list
// bounds it from below.
func (u UserCounts) DistinctLowerBound() int {
	bound := u.Films + u.Serials
	if u.Favorites > bound {
		bound = u.Favorites
	}
	if u.WantsToSee > bound {
		bound = u.WantsToSee
	}
	return bound
}

// Client wraps the HTTP capability with fixed session credentials. One
// instance is shared by all workers; the underlying transport pools
// connections.
type Client struct {
	BaseURL string
	creds   Credentials
	http    *retryablehttp.Client
}

func NewClient(creds Credentials) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		creds:   creds,
		http:    whttp.NewClient(30 * time.Second),
	}
}

func (c *Client) get(ctx context.Context, url string) (*whttp.WHTTPRes, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: "GET",
		URL:    url,
		Headers: []whttp.WHTTPHeader{
			{Name: "Cookie", Value: c.creds.cookieHeader()},
		},
	}, c.http)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	if err := classifyStatus(res.StatusCode); err != nil {
		return nil, err
	}
	return res, nil
}

// FetchPage retrieves one list page. A 200 answer that is really the login
// wall (expired cookies get redirected there) counts as an auth failure.
func (c *Client) FetchPage(ctx context.Context, item WorkItem) (string, error) {
	if item.Page < 1 {
		return "", fmt.Errorf("page numbers start at 1, got %d", item.Page)
	}
	url := fmt.Sprintf("%s/user/%s/%s?page=%d", c.BaseURL, c.creds.Username, item.Category, item.Page)
	res, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	if isLoginWall(res.HTTPTitle) {
		return "", ErrAuthExpired
	}
	return res.BodyString, nil
}

// FetchVoteDetails asks the logged-vote API for the rating behind one title.
// The API answers HTML instead of JSON once the JWT dies mid-run.
func (c *Client) FetchVoteDetails(ctx context.Context, kind MediaKind, titleID int) (VoteDetails, error) {
	entity := "film"
	if kind == KindSeries {
		entity = "serial"
	}
	url := fmt.Sprintf("%s/api/v1/logged/vote/%s/%d/details", c.BaseURL, entity, titleID)
	res, err := c.get(ctx, url)
	if err != nil {
		return VoteDetails{}, err
	}
	body := res.BodyString
	if !gjson.Valid(body) || !gjson.Get(body, "rate").Exists() {
		return VoteDetails{}, ErrAuthExpired
	}
	return VoteDetails{
		Rate:     int(gjson.Get(body, "rate").Int()),
		Favorite: gjson.Get(body, "favorite").Bool(),
		ViewDate: int(gjson.Get(body, "viewDate").Int()),
	}, nil
}

// FetchUserCounts scrapes the profile page's vote-stats JSON blob.
func (c *Client) FetchUserCounts(ctx context.Context) (UserCounts, error) {
	res, err := c.get(ctx, fmt.Sprintf("%s/user/%s", c.BaseURL, c.creds.Username))
	if err != nil {
		return UserCounts{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return UserCounts{}, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	blob := strings.TrimSpace(doc.Find(".voteStatsBoxData").First().Text())
	if blob == "" || !gjson.Valid(blob) {
		return UserCounts{}, fmt.Errorf("%w: missing vote stats data", ErrMalformedPage)
	}
	return UserCounts{
		Films:      int(gjson.Get(blob, "votes.films").Int()),
		Serials:    int(gjson.Get(blob, "votes.serials").Int()),
		Favorites:  int(gjson.Get(blob, "favorite.films").Int() + gjson.Get(blob, "favorite.serials").Int()),
		WantsToSee: int(gjson.Get(blob, "w2s.films").Int() + gjson.Get(blob, "w2s.serials").Int()),
	}, nil
}

// VerifyCredentials fetches the settings page, which only renders for a live
// session, and returns the username the site reports. Called once before any
// worker starts so bad cookies fail fast.
func (c *Client) VerifyCredentials(ctx context.Context) (string, error) {
	res, err := c.get(ctx, c.BaseURL+"/settings")
	if err != nil {
		return "", err
	}
	if isLoginWall(res.HTTPTitle) {
		return "", ErrAuthExpired
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	username := strings.TrimSpace(doc.Find(".mainSettings__groupItemStateContent").Eq(2).Text())
	if username == "" {
		return "", ErrAuthExpired
	}
	return username, nil
}

func isLoginWall(pageTitle string) bool {
	t := strings.ToLower(pageTitle)
	return strings.Contains(t, "zaloguj") || strings.Contains(t, "logowanie")
}
