package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// recordingJar is a cookiejar.Jar that remembers every cookie it accepted
// so the set can be written to a snapshot and restored later.
type recordingJar struct {
	inner *cookiejar.Jar

	mu      sync.Mutex
	records map[string]CookieRecord
	now     func() time.Time
}

func newRecordingJar() *recordingJar {
	inner, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &recordingJar{
		inner:   inner,
		records: make(map[string]CookieRecord),
		now:     time.Now,
	}
}

func (j *recordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()

	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
	for _, c := range cookies {
		key := u.Hostname() + "|" + c.Domain + "|" + c.Path + "|" + c.Name
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(j.now())) {
			delete(j.records, key)
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = j.now().Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.records[key] = CookieRecord{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires.UTC(),
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
}

func (j *recordingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// export returns the unexpired cookies in a stable order.
func (j *recordingJar) export() []CookieRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]CookieRecord, 0, len(j.records))
	for _, r := range j.records {
		if !r.Expires.IsZero() && !r.Expires.After(now) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].URL != out[b].URL {
			return out[a].URL < out[b].URL
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// restore loads records back into the jar. Records with an unparseable URL
// are skipped and counted.
func (j *recordingJar) restore(records []CookieRecord) (skipped int) {
	for _, r := range records {
		u, err := url.Parse(r.URL)
		if err != nil || u.Host == "" {
			skipped++
			continue
		}
		j.SetCookies(u, []*http.Cookie{{
			Name:     r.Name,
			Value:    r.Value,
			Path:     r.Path,
			Domain:   r.Domain,
			Expires:  r.Expires,
			Secure:   r.Secure,
			HttpOnly: r.HttpOnly,
		}})
	}
	return skipped
}
