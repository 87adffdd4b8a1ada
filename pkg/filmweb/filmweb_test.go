package filmweb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Credentials{Username: "tester", Token: "tok", Session: "sess", JWT: "jwt"})
	client.BaseURL = server.URL
	return client, server
}

func TestFetchPageSendsSessionCookies(t *testing.T) {
	var gotCookie string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		fmt.Fprint(w, votesPage())
	}))

	if _, err := client.FetchPage(context.Background(), WorkItem{Category: CategoryFilms, Page: 1}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"_fwuser_token=tok", "_fwuser_sessionId=sess", "JWT=jwt"} {
		if !strings.Contains(gotCookie, want) {
			t.Fatalf("cookie header %q missing %q", gotCookie, want)
		}
	}
}

func TestFetchPageBuildsCategoryURL(t *testing.T) {
	var gotPath string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		fmt.Fprint(w, votesPage())
	}))

	if _, err := client.FetchPage(context.Background(), WorkItem{Category: CategoryWantsToSee, Page: 3}); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/user/tester/wantToSee?page=3" {
		t.Fatalf("unexpected request target %q", gotPath)
	}
}

func TestFetchPageStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{401, func(err error) bool { return errors.Is(err, ErrAuthExpired) }, "auth"},
		{403, func(err error) bool { return errors.Is(err, ErrAuthExpired) }, "auth forbidden"},
		{404, func(err error) bool { return errors.Is(err, ErrNotFound) }, "not found"},
		{500, IsTransient, "server error"},
		{429, IsTransient, "rate limited"},
	}
	for _, tt := range tests {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		_, err := client.FetchPage(context.Background(), WorkItem{Category: CategoryFilms, Page: 1})
		if err == nil || !tt.check(err) {
			t.Fatalf("%s: status %d misclassified as %v", tt.name, tt.status, err)
		}
	}
}

func TestFetchPageLoginWallMeansAuthExpired(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><head><title>Zaloguj się - Filmweb</title></head><body></body></html>")
	}))
	_, err := client.FetchPage(context.Background(), WorkItem{Category: CategoryFilms, Page: 1})
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("a login wall behind a 200 must read as an expired session, got %v", err)
	}
}

func TestFetchVoteDetails(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/logged/vote/serial/94331/details" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"rate":8,"favorite":true,"viewDate":20221105,"timestamp":1667645342000}`)
	}))

	details, err := client.FetchVoteDetails(context.Background(), KindSeries, 94331)
	if err != nil {
		t.Fatal(err)
	}
	if details.Rate != 8 || !details.Favorite {
		t.Fatalf("unexpected details %+v", details)
	}
	if got := details.RatedAt(); got != "2022-11-05" {
		t.Fatalf("expected 2022-11-05, got %q", got)
	}
}

func TestFetchVoteDetailsNonJSONMeansAuthExpired(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>please log in</html>")
	}))
	_, err := client.FetchVoteDetails(context.Background(), KindMovie, 1)
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("an HTML answer from the vote API means the JWT died, got %v", err)
	}
}

func TestRatedAtAbsent(t *testing.T) {
	if got := (VoteDetails{Rate: 7}).RatedAt(); got != "" {
		t.Fatalf("expected blank date for a missing viewDate, got %q", got)
	}
}

func TestFetchUserCounts(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><span class="voteStatsBoxData">{"votes":{"films":120,"serials":15,"games":0,"tvshows":2,"roleCount":0},"w2s":{"films":30,"serials":4,"games":0,"tvshows":0},"favorite":{"films":7,"serials":1,"games":0,"tvshows":0,"people":3}}</span></body></html>`)
	}))

	counts, err := client.FetchUserCounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts.Films != 120 || counts.Serials != 15 || counts.WantsToSee != 34 || counts.Favorites != 8 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestUserCountsDistinctLowerBound(t *testing.T) {
	tests := []struct {
		counts UserCounts
		want   int
	}{
		// Favorites and watchlist fit inside the rated lists, so overlap can
		// explain everything above films+serials.
		{UserCounts{Films: 120, Serials: 15, Favorites: 8, WantsToSee: 34}, 135},
		// A watchlist larger than everything rated forces at least that many
		// distinct titles.
		{UserCounts{Films: 10, Serials: 2, Favorites: 3, WantsToSee: 40}, 40},
		{UserCounts{Favorites: 5}, 5},
		{UserCounts{}, 0},
	}
	for _, tc := range tests {
		if got := tc.counts.DistinctLowerBound(); got != tc.want {
			t.Fatalf("DistinctLowerBound(%+v) = %d, want %d", tc.counts, got, tc.want)
		}
	}
}

func TestVerifyCredentials(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `<html><body>
<span class="mainSettings__groupItemStateContent">a@b.c</span>
<span class="mainSettings__groupItemStateContent">pl</span>
<span class="mainSettings__groupItemStateContent"> tester </span>
</body></html>`)
	}))

	username, err := client.VerifyCredentials(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if username != "tester" {
		t.Fatalf("expected tester, got %q", username)
	}
}

func TestVerifyCredentialsRejectsDeadSession(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	if _, err := client.VerifyCredentials(context.Background()); !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
}

func TestCredentialsValidate(t *testing.T) {
	full := Credentials{Username: "u", Token: "t", Session: "s", JWT: "j"}
	if err := full.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (Credentials{Username: "u", Token: "t"}).Validate(); err == nil {
		t.Fatal("missing cookies must not validate")
	}
}
