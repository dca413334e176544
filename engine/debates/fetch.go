package debates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/pkg/fn"
	"golang.org/x/time/rate"
)

// DefaultAPIBase is the Oireachtas listing API.
const DefaultAPIBase = "https://api.oireachtas.ie"

const userAgent = "oireachtas-mvp/1.0 (debate indexer)"

// ErrThrottled is returned when the listing API rejects us for rate.
var ErrThrottled = fmt.Errorf("oireachtas API throttled")

// Fetcher retrieves member and debate records from the Oireachtas API.
type Fetcher struct {
	apiBase     string
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	seen        sync.Map // dedup by debate URI
}

// NewFetcher creates a Fetcher against the public API.
func NewFetcher(apiBase string) *Fetcher {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Fetcher{
		apiBase:     apiBase,
		rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// debateListResponse is the /v1/debates listing shape.
type debateListResponse struct {
	Results []struct {
		DebateRecord struct {
			URI   string `json:"uri"`
			Date  string `json:"date"`
			House struct {
				HouseCode string `json:"houseCode"`
				ShowAs    string `json:"showAs"`
			} `json:"house"`
			Formats struct {
				XML struct {
					URI string `json:"uri"`
				} `json:"xml"`
			} `json:"formats"`
		} `json:"debateRecord"`
	} `json:"results"`
}

// memberListResponse is the /v1/members listing shape.
type memberListResponse struct {
	Results []struct {
		Member struct {
			FullName    string `json:"fullName"`
			Memberships []struct {
				Membership struct {
					House struct {
						HouseCode string `json:"houseCode"`
					} `json:"house"`
					Parties []struct {
						Party struct {
							ShowAs string `json:"showAs"`
						} `json:"party"`
					} `json:"parties"`
					Represents []struct {
						Represent struct {
							ShowAs string `json:"showAs"`
						} `json:"represent"`
					} `json:"represents"`
				} `json:"membership"`
			} `json:"memberships"`
		} `json:"member"`
	} `json:"results"`
}

// DebateRef points at one sitting's transcript.
type DebateRef struct {
	URI    string
	Date   string
	House  string
	XMLURI string
}

// ListDebates queries the listing API for sittings in the given window.
func (f *Fetcher) ListDebates(ctx context.Context, opts FetchOpts) ([]DebateRef, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	house := opts.House
	if house == "" {
		house = "dail"
	}
	limit := opts.MaxDebates
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{
		"chamber_type": {"house"},
		"chamber":      {house},
		"limit":        {strconv.Itoa(limit)},
	}
	if opts.DateStart != "" {
		params.Set("date_start", opts.DateStart)
	}
	if opts.DateEnd != "" {
		params.Set("date_end", opts.DateEnd)
	}

	body, err := f.get(ctx, f.apiBase+"/v1/debates?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("debates: list debates: %w", err)
	}

	var lr debateListResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("debates: decode debate list: %w", err)
	}

	refs := make([]DebateRef, 0, len(lr.Results))
	for _, r := range lr.Results {
		refs = append(refs, DebateRef{
			URI:    r.DebateRecord.URI,
			Date:   r.DebateRecord.Date,
			House:  normalizeHouse(r.DebateRecord.House.HouseCode),
			XMLURI: r.DebateRecord.Formats.XML.URI,
		})
	}
	return refs, nil
}

// ListMembers queries the listing API for members of a house.
func (f *Fetcher) ListMembers(ctx context.Context, house string, limit int) ([]MemberRecord, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	if house == "" {
		house = "dail"
	}
	if limit <= 0 {
		limit = 200
	}

	params := url.Values{
		"chamber": {house},
		"limit":   {strconv.Itoa(limit)},
	}
	body, err := f.get(ctx, f.apiBase+"/v1/members?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("debates: list members: %w", err)
	}

	var mr memberListResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("debates: decode member list: %w", err)
	}

	var members []MemberRecord
	for _, r := range mr.Results {
		m := MemberRecord{Name: r.Member.FullName, House: house}
		if len(r.Member.Memberships) > 0 {
			ms := r.Member.Memberships[0].Membership
			if len(ms.Parties) > 0 {
				m.Party = ms.Parties[0].Party.ShowAs
			}
			if len(ms.Represents) > 0 {
				m.Constituency = ms.Represents[0].Represent.ShowAs
			}
		}
		if m.Name != "" {
			members = append(members, m)
		}
	}
	return members, nil
}

// FetchDebateXML downloads one sitting's transcript body.
func (f *Fetcher) FetchDebateXML(ctx context.Context, xmlURI string) ([]byte, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := f.get(ctx, xmlURI)
	if err != nil {
		return nil, fmt.Errorf("debates: fetch transcript: %w", err)
	}
	return body, nil
}

// Fetch runs a full fetch: list sittings, download and parse each
// transcript, and stream the speeches. Sittings already seen by this
// Fetcher are skipped.
func (f *Fetcher) Fetch(ctx context.Context, opts FetchOpts) <-chan fn.Result[SpeechRecord] {
	ch := make(chan fn.Result[SpeechRecord], 32)

	go func() {
		defer close(ch)

		refs, err := f.ListDebates(ctx, opts)
		if err != nil {
			ch <- fn.Err[SpeechRecord](err)
			return
		}

		for _, ref := range refs {
			if ctx.Err() != nil {
				return
			}
			if ref.XMLURI == "" {
				continue
			}
			if _, loaded := f.seen.LoadOrStore(ref.URI, true); loaded {
				continue
			}

			data, err := f.FetchDebateXML(ctx, ref.XMLURI)
			if err != nil {
				if errors.Is(err, ErrThrottled) {
					ch <- fn.Err[SpeechRecord](err)
					return
				}
				continue
			}

			records, err := ParseDebate(data)
			if err != nil {
				continue
			}
			now := time.Now()
			for i := range records {
				records[i].FetchedAt = now
				ch <- fn.Ok(records[i])
			}
		}
	}()

	return ch
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/xml;q=0.9")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		return nil, ErrThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, u)
	}
	return io.ReadAll(resp.Body)
}
